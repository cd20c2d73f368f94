package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/rexliu/ksdk/pkg/core"
)

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{
		"filter.objectType=MediaEntryFilter",
		"filter.statusIn=2",
		"pager.pageSize=10",
		"entryId=0_abc",
		"resume=false",
		"description=null",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	body, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	filter, _ := got["filter"].(map[string]any)
	if filter["objectType"] != "MediaEntryFilter" || filter["statusIn"] != "2" {
		t.Fatalf("unexpected filter %v", got["filter"])
	}
	if pager, _ := got["pager"].(map[string]any); pager["pageSize"] != "10" {
		t.Fatalf("unexpected pager %v", got["pager"])
	}
	if got["entryId"] != "0_abc" || got["resume"] != false {
		t.Fatalf("unexpected scalars %v", got)
	}
	if _, ok := got["description__null"]; !ok {
		t.Fatalf("expected null marker, got %v", got)
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Fatal("expected malformed pair to fail")
	}
}

func TestParseFiles(t *testing.T) {
	files, err := parseFiles([]string{"fileData=/tmp/clip.mp4"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if files["fileData"].Path != "/tmp/clip.mp4" {
		t.Fatalf("unexpected files %+v", files)
	}
	if _, err := parseFiles([]string{"fileData="}); err == nil {
		t.Fatal("expected empty path to fail")
	}
}

func TestSetupWithJournal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api_v3/service/media/action/get", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(`{"objectType":"KalturaMediaEntry","id":"0_abc","name":"Intro"}`))
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "journal.db")
	path := filepath.Join(dir, "config.toml")
	body := "profileName = \"test\"\n" +
		"[service]\nurl = \"" + srv.URL + "\"\nformat = \"json\"\nclientTag = \"cli-test\"\n" +
		"[session]\npartnerId = 123\nsecret = \"s3cr3t\"\n" +
		"[logging]\nlevel = \"error\"\n" +
		"[journal]\nenabled = true\ndbPath = \"" + filepath.ToSlash(dbPath) + "\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	ctx := context.Background()
	e, err := setup(ctx, path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(e.close)

	if e.store == nil || e.store.Path() != filepath.ToSlash(dbPath) {
		t.Fatalf("expected journal at %s, got %+v", dbPath, e.store)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected journal file: %v", err)
	}
	c := e.api.Client()
	if c.Config().Format != core.FormatJSON || c.Config().Journal == nil {
		t.Fatalf("unexpected client config %+v", c.Config())
	}
	if c.ClientConfiguration()["clientTag"] != "cli-test" {
		t.Fatalf("expected clientTag, got %v", c.ClientConfiguration())
	}
	if c.RequestConfiguration()["partnerId"] != 123 {
		t.Fatalf("expected partnerId 123, got %v", c.RequestConfiguration())
	}

	entry, err := e.api.Media().Get(ctx, "0_abc", -1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *entry.ID != "0_abc" {
		t.Fatalf("expected 0_abc, got %s", *entry.ID)
	}
	recent, err := e.store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || len(recent[0].Actions) != 1 || recent[0].Actions[0] != "media.get" || recent[0].Status != http.StatusOK {
		t.Fatalf("unexpected journal %+v", recent)
	}
	stored, err := e.store.Body(ctx, recent[0].ID)
	if err != nil || len(stored) == 0 {
		t.Fatalf("expected stored body, got %q %v", stored, err)
	}
}
