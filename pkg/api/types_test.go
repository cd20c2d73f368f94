package api

import (
	"testing"

	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/decode"
	"github.com/rexliu/ksdk/pkg/params"
)

func decodeAs(t *testing.T, payload string, format core.Format, fallback string) any {
	t.Helper()
	v, err := decode.New(NewRegistry()).Decode([]byte(payload), format, fallback)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func encodeJSON(t *testing.T, value any) string {
	t.Helper()
	p := params.New()
	p.Add("v", value)
	encoded, ok := p.Get("v")
	if !ok {
		t.Fatal("expected encoded value")
	}
	body, err := encoded.(*params.Params).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(body)
}

func assertTranslations(t *testing.T, entry *MediaEntry, languages, values []string) {
	t.Helper()
	if len(entry.MultiLingualName) != len(values) {
		t.Fatalf("expected %d translations, got %d", len(values), len(entry.MultiLingualName))
	}
	for i, tr := range entry.MultiLingualName {
		if tr.Value == nil || *tr.Value != values[i] {
			t.Fatalf("expected value %q at %d, got %v", values[i], i, tr.Value)
		}
		if languages == nil {
			continue
		}
		if tr.Language == nil || *tr.Language != languages[i] {
			t.Fatalf("expected language %q at %d, got %v", languages[i], i, tr.Language)
		}
	}
	if entry.Name == nil || *entry.Name != values[0] {
		t.Fatalf("expected name %q, got %v", values[0], entry.Name)
	}
}

func TestMediaEntryMultiLingualName(t *testing.T) {
	t.Run("xml repeated text", func(t *testing.T) {
		payload := `<xml><result><objectType>KalturaMediaEntry</objectType><id>0_a</id>` +
			`<name>hello</name><name>bonjour</name></result></xml>`
		entry := decodeAs(t, payload, core.FormatXML, "MediaEntry").(*MediaEntry)
		assertTranslations(t, entry, nil, []string{"hello", "bonjour"})
	})

	t.Run("xml repeated translations", func(t *testing.T) {
		payload := `<xml><result><objectType>KalturaMediaEntry</objectType><id>0_a</id>` +
			`<name><language>en</language><value>hello</value></name>` +
			`<name><language>fr</language><value>bonjour</value></name></result></xml>`
		entry := decodeAs(t, payload, core.FormatXML, "MediaEntry").(*MediaEntry)
		assertTranslations(t, entry, []string{"en", "fr"}, []string{"hello", "bonjour"})
	})

	t.Run("xml item list", func(t *testing.T) {
		payload := `<xml><result><objectType>KalturaMediaEntry</objectType><id>0_a</id><name>` +
			`<item><language>en</language><value>hello</value></item>` +
			`<item><objectType>KalturaMultiLingualString</objectType><language>fr</language><value>bonjour</value></item>` +
			`</name></result></xml>`
		entry := decodeAs(t, payload, core.FormatXML, "MediaEntry").(*MediaEntry)
		assertTranslations(t, entry, []string{"en", "fr"}, []string{"hello", "bonjour"})
	})

	t.Run("json untagged translations", func(t *testing.T) {
		payload := `{"objectType":"KalturaMediaEntry","id":"0_a","name":[{"language":"en","value":"hello"},{"language":"fr","value":"bonjour"}]}`
		entry := decodeAs(t, payload, core.FormatJSON, "MediaEntry").(*MediaEntry)
		assertTranslations(t, entry, []string{"en", "fr"}, []string{"hello", "bonjour"})
	})

	t.Run("single translation", func(t *testing.T) {
		payload := `<xml><result><objectType>KalturaMediaEntry</objectType>` +
			`<name><language>en</language><value>hello</value></name></result></xml>`
		entry := decodeAs(t, payload, core.FormatXML, "MediaEntry").(*MediaEntry)
		assertTranslations(t, entry, []string{"en"}, []string{"hello"})
	})

	t.Run("plain name", func(t *testing.T) {
		entry := decodeAs(t, `{"objectType":"KalturaMediaEntry","name":"hello"}`, core.FormatJSON, "MediaEntry").(*MediaEntry)
		if entry.Name == nil || *entry.Name != "hello" || entry.MultiLingualName != nil {
			t.Fatalf("expected plain name, got %v %v", entry.Name, entry.MultiLingualName)
		}
	})
}

func TestMediaEntryFilterDecode(t *testing.T) {
	payload := `{"objectType":"MediaEntryFilter","nameLike":"x","statusIn":["2","1"],"mediaTypeEqual":"1"}`
	filter := decodeAs(t, payload, core.FormatJSON, "MediaEntryFilter").(*MediaEntryFilter)
	if filter.NameLike == nil || *filter.NameLike != "x" {
		t.Fatalf("expected nameLike x, got %v", filter.NameLike)
	}
	if len(filter.StatusIn) != 2 || filter.StatusIn[0] != EntryStatusReady || filter.StatusIn[1] != EntryStatusPending {
		t.Fatalf("expected statusIn [2 1], got %v", filter.StatusIn)
	}
	if filter.MediaTypeEqual == nil || *filter.MediaTypeEqual != MediaTypeVideo {
		t.Fatalf("expected mediaTypeEqual 1, got %v", filter.MediaTypeEqual)
	}

	t.Run("comma separated", func(t *testing.T) {
		payload := `<xml><result><objectType>KalturaMediaEntryFilter</objectType><statusIn>2,3</statusIn></result></xml>`
		filter := decodeAs(t, payload, core.FormatXML, "MediaEntryFilter").(*MediaEntryFilter)
		if len(filter.StatusIn) != 2 || filter.StatusIn[1] != EntryStatusDeleted {
			t.Fatalf("expected statusIn [2 3], got %v", filter.StatusIn)
		}
	})
}

func TestTypesRoundTrip(t *testing.T) {
	t.Run("filter", func(t *testing.T) {
		mt := MediaTypeAudio
		src := &MediaEntryFilter{
			NameLike:       String("intro"),
			StatusIn:       []EntryStatus{EntryStatusReady, EntryStatusPending},
			MediaTypeEqual: &mt,
			OrderBy:        String("-createdAt"),
		}
		body := encodeJSON(t, src)
		got := decodeAs(t, body, core.FormatJSON, "").(*MediaEntryFilter)
		if *got.NameLike != "intro" || *got.OrderBy != "-createdAt" || got.IDIn != nil {
			t.Fatalf("unexpected filter %+v from %s", got, body)
		}
		if len(got.StatusIn) != 2 || got.StatusIn[0] != EntryStatusReady || got.StatusIn[1] != EntryStatusPending {
			t.Fatalf("expected statusIn to survive, got %v from %s", got.StatusIn, body)
		}
		if got.MediaTypeEqual == nil || *got.MediaTypeEqual != MediaTypeAudio {
			t.Fatalf("expected mediaTypeEqual 5, got %v from %s", got.MediaTypeEqual, body)
		}
	})

	t.Run("nested list", func(t *testing.T) {
		src := &MediaListResponse{
			Objects: []*MediaEntry{
				{BaseEntry: BaseEntry{Name: String("plain")}},
				{BaseEntry: BaseEntry{MultiLingualName: []*MultiLingualString{
					{Language: String("en"), Value: String("hello")},
					{Language: String("fr"), Value: String("bonjour")},
				}}},
			},
			TotalCount: 2,
		}
		body := encodeJSON(t, src)
		got := decodeAs(t, body, core.FormatJSON, "MediaListResponse").(*MediaListResponse)
		if got.TotalCount != 2 || len(got.Objects) != 2 {
			t.Fatalf("unexpected list %+v from %s", got, body)
		}
		if *got.Objects[0].Name != "plain" {
			t.Fatalf("expected plain first, got %v", got.Objects[0].Name)
		}
		assertTranslations(t, got.Objects[1], []string{"en", "fr"}, []string{"hello", "bonjour"})
	})

	t.Run("keyed map", func(t *testing.T) {
		src := map[string]*MediaEntry{
			"a": {BaseEntry: BaseEntry{Name: String("first")}},
			"b": {BaseEntry: BaseEntry{Tags: String("x,y")}},
		}
		body := encodeJSON(t, src)
		got, ok := decodeAs(t, body, core.FormatJSON, "MediaEntry").(map[string]any)
		if !ok || len(got) != 2 {
			t.Fatalf("expected 2-entry map from %s, got %#v", body, got)
		}
		if entry, ok := got["a"].(*MediaEntry); !ok || *entry.Name != "first" {
			t.Fatalf("expected entry a, got %#v", got["a"])
		}
		if entry, ok := got["b"].(*MediaEntry); !ok || *entry.Tags != "x,y" {
			t.Fatalf("expected entry b, got %#v", got["b"])
		}
	})
}
