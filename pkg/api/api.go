package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rexliu/ksdk/pkg/client"
	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/params"
	"github.com/rexliu/ksdk/pkg/session"
)

// API exposes the services of one client. Services are built on first use.
type API struct {
	client *client.Client

	mediaOnce sync.Once
	media     *MediaService

	uploadOnce  sync.Once
	uploadToken *UploadTokenService

	sessionOnce sync.Once
	session     *SessionService
}

// New wraps c.
func New(c *client.Client) *API {
	return &API{client: c}
}

// Client returns the underlying client.
func (a *API) Client() *client.Client {
	return a.client
}

// Media returns the media service. Every call shares one instance.
func (a *API) Media() *MediaService {
	a.mediaOnce.Do(func() { a.media = &MediaService{client: a.client} })
	return a.media
}

// UploadToken returns the upload token service.
func (a *API) UploadToken() *UploadTokenService {
	a.uploadOnce.Do(func() { a.uploadToken = &UploadTokenService{client: a.client} })
	return a.uploadToken
}

// Session returns the service that starts and builds sessions.
func (a *API) Session() *SessionService {
	a.sessionOnce.Do(func() { a.session = &SessionService{client: a.client} })
	return a.session
}

// call queues one action and runs it. Outside multi-request mode only.
func call[T any](ctx context.Context, c *client.Client, service, action, expected string, p *params.Params, files map[string]client.File) (T, error) {
	var zero T
	if c.IsBatch() {
		return zero, core.Errorf(core.CodeGeneric, "%s.%s: use the Queue variant in multi-request mode", service, action)
	}
	if _, err := c.QueueCall(service, action, expected, p, files); err != nil {
		return zero, err
	}
	v, err := c.Do(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, core.Errorf(core.CodeInvalidObjectType, "%s.%s: unexpected result %T", service, action, v)
	}
	return out, nil
}

// MediaService covers the media endpoints.
type MediaService struct {
	client *client.Client
}

func getParams(entryID string, version int) *params.Params {
	p := params.New()
	p.Add("entryId", entryID)
	if version >= 0 {
		p.Add("version", version)
	}
	return p
}

// Get fetches one entry. A negative version selects the latest.
func (s *MediaService) Get(ctx context.Context, entryID string, version int) (*MediaEntry, error) {
	return call[*MediaEntry](ctx, s.client, "media", "get", "MediaEntry", getParams(entryID, version), nil)
}

// QueueGet adds media.get to the current batch.
func (s *MediaService) QueueGet(entryID string, version int) (*client.SubResult, error) {
	return s.client.QueueCall("media", "get", "MediaEntry", getParams(entryID, version), nil)
}

func listParams(filter *MediaEntryFilter, pager *FilterPager) *params.Params {
	p := params.New()
	if filter != nil {
		p.Add("filter", filter)
	}
	if pager != nil {
		p.Add("pager", pager)
	}
	return p
}

// List returns one page of entries.
func (s *MediaService) List(ctx context.Context, filter *MediaEntryFilter, pager *FilterPager) (*MediaListResponse, error) {
	return call[*MediaListResponse](ctx, s.client, "media", "list", "MediaListResponse", listParams(filter, pager), nil)
}

// QueueList adds media.list to the current batch.
func (s *MediaService) QueueList(filter *MediaEntryFilter, pager *FilterPager) (*client.SubResult, error) {
	return s.client.QueueCall("media", "list", "MediaListResponse", listParams(filter, pager), nil)
}

// Add creates an entry.
func (s *MediaService) Add(ctx context.Context, entry *MediaEntry) (*MediaEntry, error) {
	p := params.New()
	p.Add("entry", entry)
	return call[*MediaEntry](ctx, s.client, "media", "add", "MediaEntry", p, nil)
}

// AddContent attaches an upload token's file to an entry. entryID may be a
// SubResult when used inside a batch.
func (s *MediaService) AddContent(ctx context.Context, entryID, uploadTokenID any) (*MediaEntry, error) {
	return call[*MediaEntry](ctx, s.client, "media", "addContent", "MediaEntry", addContentParams(entryID, uploadTokenID), nil)
}

// QueueAddContent adds media.addContent to the current batch.
func (s *MediaService) QueueAddContent(entryID, uploadTokenID any) (*client.SubResult, error) {
	return s.client.QueueCall("media", "addContent", "MediaEntry", addContentParams(entryID, uploadTokenID), nil)
}

func addContentParams(entryID, uploadTokenID any) *params.Params {
	resource := params.New()
	resource.Set("objectType", "UploadedFileTokenResource")
	resource.Add("token", uploadTokenID)
	p := params.New()
	p.Add("entryId", entryID)
	p.Add("resource", resource)
	return p
}

// Update changes the fields set on entry. Fields marked with SetNull are cleared.
func (s *MediaService) Update(ctx context.Context, entryID string, entry *MediaEntry) (*MediaEntry, error) {
	p := params.New()
	p.Add("entryId", entryID)
	p.Add("mediaEntry", entry)
	return call[*MediaEntry](ctx, s.client, "media", "update", "MediaEntry", p, nil)
}

// Delete removes an entry.
func (s *MediaService) Delete(ctx context.Context, entryID string) error {
	p := params.New()
	p.Add("entryId", entryID)
	_, err := call[any](ctx, s.client, "media", "delete", "", p, nil)
	return err
}

// ServeURL returns a signed download URL for the entry's source file. It
// cannot run inside a multi-request.
func (s *MediaService) ServeURL(entryID string, flavorParamsID int) (string, error) {
	if err := s.client.RequireNotBatch("media", "serve"); err != nil {
		return "", err
	}
	p := params.New()
	p.Add("entryId", entryID)
	if flavorParamsID >= 0 {
		p.Add("flavorParamsId", strconv.Itoa(flavorParamsID))
	}
	if _, err := s.client.QueueCall("media", "serve", "file", p, nil); err != nil {
		return "", err
	}
	url, ok := s.client.ServeURL()
	if !ok {
		return "", core.Errorf(core.CodeDownloadNotSupported, "media.serve: no serve url")
	}
	return url, nil
}

// UploadTokenService covers chunked uploads.
type UploadTokenService struct {
	client *client.Client
}

// Add creates an upload token.
func (s *UploadTokenService) Add(ctx context.Context, token *UploadToken) (*UploadToken, error) {
	p := params.New()
	p.Add("uploadToken", token)
	return call[*UploadToken](ctx, s.client, "uploadToken", "add", "UploadToken", p, nil)
}

// QueueAdd adds uploadToken.add to the current batch.
func (s *UploadTokenService) QueueAdd(token *UploadToken) (*client.SubResult, error) {
	p := params.New()
	p.Add("uploadToken", token)
	return s.client.QueueCall("uploadToken", "add", "UploadToken", p, nil)
}

// Get fetches an upload token.
func (s *UploadTokenService) Get(ctx context.Context, tokenID string) (*UploadToken, error) {
	p := params.New()
	p.Add("uploadTokenId", tokenID)
	return call[*UploadToken](ctx, s.client, "uploadToken", "get", "UploadToken", p, nil)
}

// UploadOptions controls chunked uploads.
type UploadOptions struct {
	Resume     bool
	FinalChunk bool
	ResumeAt   float64
}

// Upload sends file data for a token. The request runs without a timeout.
func (s *UploadTokenService) Upload(ctx context.Context, tokenID string, file client.File, opts UploadOptions) (*UploadToken, error) {
	p := params.New()
	p.Add("uploadTokenId", tokenID)
	p.Add("resume", opts.Resume)
	p.Add("finalChunk", opts.FinalChunk)
	p.Add("resumeAt", opts.ResumeAt)
	files := map[string]client.File{"fileData": file}
	return call[*UploadToken](ctx, s.client, "uploadToken", "upload", "UploadToken", p, files)
}

// SessionService issues session tokens.
type SessionService struct {
	client *client.Client
}

// Start asks the server for a session token.
func (s *SessionService) Start(ctx context.Context, secret, userID string, typ session.Type, partnerID int, expiry int64, privileges string) (string, error) {
	p := params.New()
	p.Add("secret", secret)
	p.Add("userId", userID)
	p.Add("type", int(typ))
	p.Add("partnerId", partnerID)
	p.Add("expiry", expiry)
	p.Add("privileges", privileges)
	ks, err := call[any](ctx, s.client, "session", "start", "string", p, nil)
	if err != nil {
		return "", err
	}
	if ks == nil {
		return "", nil
	}
	return fmt.Sprint(ks), nil
}

// Local builds a session token without a round trip, v2 when v2 is set.
func (s *SessionService) Local(secret, userID string, typ session.Type, partnerID int, expiry int64, privileges string, v2 bool) (string, error) {
	if v2 {
		return s.client.GenerateSessionV2(secret, userID, typ, partnerID, expiry, privileges)
	}
	return s.client.GenerateSession(secret, userID, typ, partnerID, expiry, privileges)
}
