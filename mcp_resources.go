// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"

	"github.com/yosida95/uritemplate/v3"
)

// Resource represents a known resource the server can read.
type Resource struct {
	// URI is the unique identifier of the resource.
	URI string `json:"uri"`

	// Name is a human-readable name for the resource.
	Name string `json:"name"`

	// Description is an optional description of the resource.
	Description string `json:"description,omitempty"`

	// MimeType is the MIME type of the resource, if known.
	MimeType string `json:"mimeType,omitempty"`

	Annotated
}

// ResourceTemplate describes a templated resource available on the server,
// matched against incoming URIs using RFC 6570 (levels 1-2).
type ResourceTemplate struct {
	// Name identifies the template.
	Name string `json:"name"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// MimeType is the MIME type of matching resources, if uniform.
	MimeType string `json:"mimeType,omitempty"`

	// URITemplate is the RFC 6570 template used to match and extract variables.
	URITemplate *uritemplate.Template `json:"-"`

	// URITemplateString preserves the raw template string for marshaling.
	URITemplateString string `json:"uriTemplate"`

	Annotated
}

// ResourceContents represents the contents of a resource, either text or binary.
type ResourceContents interface {
	isResourceContents()
}

// TextResourceContents represents textual resource contents.
type TextResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

func (TextResourceContents) isResourceContents() {}

// BlobResourceContents represents base64-encoded binary resource contents.
type BlobResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Blob     string `json:"blob"`
}

func (BlobResourceContents) isResourceContents() {}

// resourceHandler reads a single resource and returns its sole contents.
type resourceHandler func(ctx context.Context, req *ReadResourceRequest) (ResourceContents, error)

// resourcesHandler reads a resource that may expand into multiple contents entries.
type resourcesHandler func(ctx context.Context, req *ReadResourceRequest) ([]ResourceContents, error)

// resourceTemplateHandler reads a resource matched through a template, receiving
// the variables extracted from the URI.
type resourceTemplateHandler func(ctx context.Context, req *ReadResourceRequest, params map[string]string) ([]ResourceContents, error)

// registeredResourceOption configures a registeredResource after creation.
type registeredResourceOption func(*registeredResource)

// registerResourceTemplateOption configures a registerResourceTemplate after creation.
type registerResourceTemplateOption func(*registerResourceTemplate)

// registeredResource combines a Resource with its read handler.
type registeredResource struct {
	Resource                  *Resource
	Handler                   resourcesHandler
	CompletionCompleteHandler completionCompleteHandler
}

// registerResourceTemplate combines a ResourceTemplate with its read handler.
type registerResourceTemplate struct {
	resourceTemplate          *ResourceTemplate
	Handler                   resourceTemplateHandler
	CompletionCompleteHandler templateCompletionCompleteHandler
}

// templateCompletionCompleteHandler handles completion requests against a
// resource template match, receiving the extracted URI variables.
type templateCompletionCompleteHandler func(ctx context.Context, req *CompleteCompletionRequest, params map[string]string) (*CompleteCompletionResult, error)

// ResourceListFilter filters the resources visible to a given request context.
type ResourceListFilter func(ctx context.Context, resources []*Resource) []*Resource

// ListResourcesRequest describes a request to list resources.
type ListResourcesRequest struct {
	PaginatedRequest
}

// ListResourcesResult describes a result of listing resources.
type ListResourcesResult struct {
	PaginatedResult
	Resources []Resource `json:"resources"`
}

// ListResourceTemplatesRequest describes a request to list resource templates.
type ListResourceTemplatesRequest struct {
	PaginatedRequest
}

// ListResourceTemplatesResult describes a result of listing resource templates.
type ListResourceTemplatesResult struct {
	PaginatedResult
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ReadResourceRequest describes a request to read a resource.
type ReadResourceRequest struct {
	Request
	Params struct {
		URI       string                 `json:"uri"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	} `json:"params"`
}

// ReadResourceResult describes a result of reading a resource.
type ReadResourceResult struct {
	Result
	Contents []ResourceContents `json:"contents"`
}

// ResourceListChangedNotification represents a notification that the resource list has changed.
type ResourceListChangedNotification struct {
	Notification
}

// ResourceUpdatedNotification represents a notification that a subscribed resource changed.
type ResourceUpdatedNotification struct {
	Notification
}

// NewResourceTemplate creates a ResourceTemplate backed by a parsed RFC 6570 template.
// Invalid template strings produce a template with a nil URITemplate, which never matches.
func NewResourceTemplate(name, uriTemplate string, opts ...func(*ResourceTemplate)) *ResourceTemplate {
	rt := &ResourceTemplate{
		Name:              name,
		URITemplateString: uriTemplate,
	}
	if tmpl, err := uritemplate.New(uriTemplate); err == nil {
		rt.URITemplate = tmpl
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}
