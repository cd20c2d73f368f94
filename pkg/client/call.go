package client

import (
	"io"
	"strconv"

	"github.com/rexliu/ksdk/pkg/params"
)

// File is an upload attachment. Content is read when set; otherwise Path is opened.
type File struct {
	Name    string
	Path    string
	Content io.Reader
}

// ActionCall is one pending remote call.
type ActionCall struct {
	Service string
	Action  string
	Params  *params.Params
	Files   map[string]File
}

// NewActionCall copies p so later changes by the caller do not leak into the queue.
func NewActionCall(service, action string, p *params.Params, files map[string]File) *ActionCall {
	call := &ActionCall{
		Service: service,
		Action:  action,
		Params:  p.Clone(),
		Files:   make(map[string]File, len(files)),
	}
	for key, f := range files {
		call.Files[key] = f
	}
	return call
}

// ParamsForBatch returns the call's parameters nested under its index, with
// service and action leading: {"<index>": {"service": ..., "action": ..., ...}}.
func (c *ActionCall) ParamsForBatch(index int) *params.Params {
	entry := params.New()
	entry.Set("service", c.Service)
	entry.Set("action", c.Action)
	entry.Merge(c.Params)
	out := params.New()
	out.Set(strconv.Itoa(index), entry)
	return out
}

// FilesForBatch qualifies file keys with the call index, e.g. "2:fileData".
func (c *ActionCall) FilesForBatch(index int) map[string]File {
	out := make(map[string]File, len(c.Files))
	prefix := strconv.Itoa(index) + ":"
	for key, f := range c.Files {
		out[prefix+key] = f
	}
	return out
}

func (c *ActionCall) name() string {
	return c.Service + "." + c.Action
}
