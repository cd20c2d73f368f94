package api

import (
	"fmt"
	"strings"

	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/decode"
)

// MediaType is the kind of media an entry holds.
type MediaType int

const (
	MediaTypeVideo           MediaType = 1
	MediaTypeImage           MediaType = 2
	MediaTypeAudio           MediaType = 5
	MediaTypeLiveStreamFlash MediaType = 201
)

// EntryStatus is the processing state of an entry.
type EntryStatus string

const (
	EntryStatusError   EntryStatus = "-1"
	EntryStatusImport  EntryStatus = "0"
	EntryStatusPending EntryStatus = "1"
	EntryStatusReady   EntryStatus = "2"
	EntryStatusDeleted EntryStatus = "3"
)

// UploadTokenStatus is the state of an upload token.
type UploadTokenStatus int

const (
	UploadTokenPending       UploadTokenStatus = 0
	UploadTokenPartialUpload UploadTokenStatus = 1
	UploadTokenFullUpload    UploadTokenStatus = 2
	UploadTokenClosed        UploadTokenStatus = 3
	UploadTokenTimedOut      UploadTokenStatus = 4
	UploadTokenDeleted       UploadTokenStatus = 5
)

// MultiLingualString is one translation of a multi-lingual field.
type MultiLingualString struct {
	ObjectBase
	Language *string
	Value    *string
}

func (m *MultiLingualString) ObjectType() string { return "MultiLingualString" }

func (m *MultiLingualString) EncodeFields(sink core.FieldSink) {
	m.add(sink, "language", m.Language)
	m.add(sink, "value", m.Value)
}

func (m *MultiLingualString) DecodeField(name string, value any) error {
	switch name {
	case "language":
		m.Language = stringPtr(value)
	case "value":
		m.Value = stringPtr(value)
	}
	return nil
}

// BaseEntry holds the fields shared by every entry type.
type BaseEntry struct {
	ObjectBase
	ID          *string
	Name        *string
	Description *string
	Tags        *string
	PartnerID   *int64
	UserID      *string
	Status      *EntryStatus
	CreatedAt   *int64
	UpdatedAt   *int64

	// MultiLingualName holds every translation when the server sends them.
	// Name then carries the first value. When set it is sent instead of Name.
	MultiLingualName []*MultiLingualString
}

func (e *BaseEntry) ObjectType() string { return "BaseEntry" }

func (e *BaseEntry) EncodeFields(sink core.FieldSink) {
	if len(e.MultiLingualName) > 0 {
		e.add(sink, "multiLingual_name", e.MultiLingualName)
	} else {
		e.add(sink, "name", e.Name)
	}
	e.add(sink, "description", e.Description)
	e.add(sink, "tags", e.Tags)
	e.add(sink, "userId", e.UserID)
}

func (e *BaseEntry) DecodeField(name string, value any) error {
	if handled, err := e.decodeBase(name, value); handled {
		return err
	}
	var err error
	switch name {
	case "id":
		e.ID = stringPtr(value)
	case "name", "multiLingual_name":
		e.Name, e.MultiLingualName, err = multiLingualString(value)
	case "description":
		e.Description = stringPtr(value)
	case "tags":
		e.Tags = stringPtr(value)
	case "partnerId":
		e.PartnerID, err = intPtr(value)
	case "userId":
		e.UserID = stringPtr(value)
	case "status":
		status := EntryStatus(decode.String(value))
		e.Status = &status
	case "createdAt":
		e.CreatedAt, err = intPtr(value)
	case "updatedAt":
		e.UpdatedAt, err = intPtr(value)
	}
	return err
}

func (e *BaseEntry) IsMultiLingual(name string) bool {
	return name == "name"
}

// multiLingualString reads a field sent as a plain string, as one
// translation, or as a list of either.
func multiLingualString(value any) (*string, []*MultiLingualString, error) {
	switch v := value.(type) {
	case *MultiLingualString:
		return v.Value, []*MultiLingualString{v}, nil
	case []any:
		out := make([]*MultiLingualString, 0, len(v))
		for i, item := range v {
			switch t := item.(type) {
			case *MultiLingualString:
				out = append(out, t)
			case string:
				out = append(out, &MultiLingualString{Value: String(t)})
			default:
				return nil, nil, fmt.Errorf("item %d: unexpected %T", i, item)
			}
		}
		if len(out) == 0 {
			return nil, nil, nil
		}
		return out[0].Value, out, nil
	}
	return stringPtr(value), nil, nil
}

func (e *BaseEntry) FieldType(name string) string {
	switch name {
	case "name", "multiLingual_name":
		return "MultiLingualString"
	case "status":
		return "EntryStatus"
	}
	return ""
}

// MediaEntry is a video, audio or image entry.
type MediaEntry struct {
	BaseEntry
	MediaType *MediaType
	Duration  *int64
	Plays     *int64
	DataURL   *string
}

func (e *MediaEntry) ObjectType() string { return "MediaEntry" }

func (e *MediaEntry) EncodeFields(sink core.FieldSink) {
	e.BaseEntry.EncodeFields(sink)
	e.add(sink, "mediaType", e.MediaType)
}

func (e *MediaEntry) DecodeField(name string, value any) error {
	var err error
	switch name {
	case "mediaType":
		var n int64
		if n, err = decode.Int(value); err == nil {
			mt := MediaType(n)
			e.MediaType = &mt
		}
	case "duration":
		e.Duration, err = intPtr(value)
	case "plays":
		e.Plays, err = intPtr(value)
	case "dataUrl":
		e.DataURL = stringPtr(value)
	default:
		return e.BaseEntry.DecodeField(name, value)
	}
	return err
}

func (e *MediaEntry) FieldType(name string) string {
	if name == "mediaType" {
		return "MediaType"
	}
	return e.BaseEntry.FieldType(name)
}

// MediaListResponse is one page of media.list.
type MediaListResponse struct {
	ObjectBase
	Objects    []*MediaEntry
	TotalCount int64
}

func (r *MediaListResponse) ObjectType() string { return "MediaListResponse" }

func (r *MediaListResponse) EncodeFields(sink core.FieldSink) {
	r.add(sink, "objects", r.Objects)
	r.add(sink, "totalCount", r.TotalCount)
}

func (r *MediaListResponse) DecodeField(name string, value any) error {
	if handled, err := r.decodeBase(name, value); handled {
		return err
	}
	var err error
	switch name {
	case "objects":
		r.Objects, err = decode.ObjectSlice[*MediaEntry](value)
	case "totalCount":
		r.TotalCount, err = decode.Int(value)
	}
	return err
}

func (r *MediaListResponse) FieldType(name string) string {
	if name == "objects" {
		return "MediaEntry"
	}
	return ""
}

// FilterPager selects a page of a list result.
type FilterPager struct {
	ObjectBase
	PageSize  *int64
	PageIndex *int64
}

func (p *FilterPager) ObjectType() string { return "FilterPager" }

func (p *FilterPager) EncodeFields(sink core.FieldSink) {
	p.add(sink, "pageSize", p.PageSize)
	p.add(sink, "pageIndex", p.PageIndex)
}

func (p *FilterPager) DecodeField(name string, value any) error {
	var err error
	switch name {
	case "pageSize":
		p.PageSize, err = intPtr(value)
	case "pageIndex":
		p.PageIndex, err = intPtr(value)
	}
	return err
}

// MediaEntryFilter narrows media.list.
type MediaEntryFilter struct {
	ObjectBase
	IDIn           *string
	NameLike       *string
	TagsLike       *string
	StatusIn       []EntryStatus
	MediaTypeEqual *MediaType
	OrderBy        *string
}

func (f *MediaEntryFilter) ObjectType() string { return "MediaEntryFilter" }

func (f *MediaEntryFilter) EncodeFields(sink core.FieldSink) {
	f.add(sink, "idIn", f.IDIn)
	f.add(sink, "nameLike", f.NameLike)
	f.add(sink, "tagsLike", f.TagsLike)
	f.add(sink, "statusIn", f.StatusIn)
	f.add(sink, "mediaTypeEqual", f.MediaTypeEqual)
	f.add(sink, "orderBy", f.OrderBy)
}

func (f *MediaEntryFilter) DecodeField(name string, value any) error {
	switch name {
	case "idIn":
		f.IDIn = stringPtr(value)
	case "nameLike":
		f.NameLike = stringPtr(value)
	case "tagsLike":
		f.TagsLike = stringPtr(value)
	case "statusIn":
		return f.decodeStatusIn(value)
	case "mediaTypeEqual":
		n, err := decode.Int(value)
		if err != nil {
			return err
		}
		mt := MediaType(n)
		f.MediaTypeEqual = &mt
	case "orderBy":
		f.OrderBy = stringPtr(value)
	}
	return nil
}

func (f *MediaEntryFilter) decodeStatusIn(value any) error {
	switch v := value.(type) {
	case nil:
		f.StatusIn = nil
	case string:
		// An empty XML list, or the comma separated form.
		f.StatusIn = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.StatusIn = append(f.StatusIn, EntryStatus(s))
			}
		}
	case []any:
		f.StatusIn = make([]EntryStatus, 0, len(v))
		for _, item := range v {
			f.StatusIn = append(f.StatusIn, EntryStatus(decode.String(item)))
		}
	default:
		return fmt.Errorf("expected list, got %T", value)
	}
	return nil
}

func (f *MediaEntryFilter) FieldType(name string) string {
	switch name {
	case "statusIn":
		return "EntryStatus"
	case "mediaTypeEqual":
		return "MediaType"
	}
	return ""
}

// UploadToken tracks a chunked file upload.
type UploadToken struct {
	ObjectBase
	ID               *string
	PartnerID        *int64
	FileName         *string
	FileSize         *float64
	UploadedFileSize *float64
	Status           *UploadTokenStatus
	AutoFinalize     *bool
}

func (u *UploadToken) ObjectType() string { return "UploadToken" }

func (u *UploadToken) EncodeFields(sink core.FieldSink) {
	u.add(sink, "fileName", u.FileName)
	u.add(sink, "fileSize", u.FileSize)
	u.add(sink, "autoFinalize", u.AutoFinalize)
}

func (u *UploadToken) DecodeField(name string, value any) error {
	if handled, err := u.decodeBase(name, value); handled {
		return err
	}
	var err error
	switch name {
	case "id":
		u.ID = stringPtr(value)
	case "partnerId":
		u.PartnerID, err = intPtr(value)
	case "fileName":
		u.FileName = stringPtr(value)
	case "fileSize":
		u.FileSize, err = floatPtr(value)
	case "uploadedFileSize":
		u.UploadedFileSize, err = floatPtr(value)
	case "status":
		var n int64
		if n, err = decode.Int(value); err == nil {
			st := UploadTokenStatus(n)
			u.Status = &st
		}
	case "autoFinalize":
		u.AutoFinalize, err = boolPtr(value)
	}
	return err
}

func (u *UploadToken) FieldType(name string) string {
	if name == "status" {
		return "UploadTokenStatus"
	}
	return ""
}

// APIExceptionArg is one named argument of a server error.
type APIExceptionArg struct {
	ObjectBase
	Name  *string
	Value *string
}

func (a *APIExceptionArg) ObjectType() string { return "APIExceptionArg" }

func (a *APIExceptionArg) EncodeFields(sink core.FieldSink) {
	a.add(sink, "name", a.Name)
	a.add(sink, "value", a.Value)
}

func (a *APIExceptionArg) DecodeField(name string, value any) error {
	switch name {
	case "name":
		a.Name = stringPtr(value)
	case "value":
		a.Value = stringPtr(value)
	}
	return nil
}

// Register installs every type and enum of this package.
func Register(reg *core.Registry) {
	reg.Register("MultiLingualString", "", func() core.Object { return &MultiLingualString{} })
	reg.Register("BaseEntry", "", func() core.Object { return &BaseEntry{} })
	reg.Register("MediaEntry", "BaseEntry", func() core.Object { return &MediaEntry{} })
	reg.Register("MediaListResponse", "", func() core.Object { return &MediaListResponse{} })
	reg.Register("FilterPager", "", func() core.Object { return &FilterPager{} })
	reg.Register("MediaEntryFilter", "", func() core.Object { return &MediaEntryFilter{} })
	reg.Register("UploadToken", "", func() core.Object { return &UploadToken{} })
	reg.Register("APIExceptionArg", "", func() core.Object { return &APIExceptionArg{} })

	reg.RegisterEnum("MediaType", "1", "2", "5", "201")
	reg.RegisterEnum("EntryStatus", "-1", "0", "1", "2", "3")
	reg.RegisterEnum("UploadTokenStatus", "0", "1", "2", "3", "4", "5")
}

// NewRegistry returns a registry with every type of this package installed.
func NewRegistry() *core.Registry {
	reg := core.NewRegistry()
	Register(reg)
	return reg
}
