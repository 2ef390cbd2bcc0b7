package clients

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Upload is one document handed to the document service.
type Upload struct {
	Content     []byte
	FileName    string
	ContentType string
	Metadata    map[string]string
}

// Stored is what the document service returns for an upload.
type Stored struct {
	DocumentRef string `json:"document_id"`
	DownloadURL string `json:"url,omitempty"`
}

// DocumentClient stores document bytes in the document service.
type DocumentClient struct {
	*base
}

func NewDocumentClient(cfg Config, opts ...Option) *DocumentClient {
	return &DocumentClient{base: newBase("documents", cfg, opts...)}
}

type uploadRequest struct {
	FileName    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Upload sends the content once. Failures surface as unavailable.
func (c *DocumentClient) Upload(ctx context.Context, u Upload) (Stored, error) {
	var out Stored
	err := c.write(ctx, http.MethodPost, "/documents/upload", uploadRequest{
		FileName:    u.FileName,
		ContentType: u.ContentType,
		Content:     base64.StdEncoding.EncodeToString(u.Content),
		Metadata:    u.Metadata,
	}, &out)
	if err != nil {
		return Stored{}, err
	}
	return out, nil
}

// DownloadURL resolves a retrievable locator for ref.
func (c *DocumentClient) DownloadURL(ctx context.Context, ref string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.read(ctx, http.MethodGet, "/documents/"+url.PathEscape(ref)+"/download-url", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// LocalDocuments stands in for the document service when none is configured.
// It keeps no bytes and derives locators from a fixed base URL.
type LocalDocuments struct {
	downloadBase string
}

func NewLocalDocuments(downloadBase string) *LocalDocuments {
	return &LocalDocuments{downloadBase: strings.TrimRight(downloadBase, "/")}
}

func (l *LocalDocuments) Upload(_ context.Context, _ Upload) (Stored, error) {
	ref := "doc_" + uuid.NewString()
	return Stored{DocumentRef: ref, DownloadURL: l.downloadBase + "/" + ref}, nil
}

func (l *LocalDocuments) DownloadURL(_ context.Context, ref string) (string, error) {
	return l.downloadBase + "/" + url.PathEscape(ref), nil
}
