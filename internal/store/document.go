package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/security"
)

// ErrDocumentTooLarge は書類がサイズ上限を超えた場合のエラー。
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// Document は取得した添付書類。
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

// DocumentFetcher は請求に添付された書類を取得する。
// ストアと同一オリジンの書類はセッションのトークン付きで、
// 外部の書類はSSRF防止クライアントでトークンなしに取得する。
type DocumentFetcher struct {
	client   *Client
	guard    security.DocumentGuardService
	external *http.Client
	maxSize  int64
	logger   *slog.Logger
}

// NewDocumentFetcher はDocumentFetcherの新しいインスタンスを生成する。
func NewDocumentFetcher(client *Client, guard security.DocumentGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) *DocumentFetcher {
	return &DocumentFetcher{
		client:   client,
		guard:    guard,
		external: guard.NewSafeClient(timeout),
		maxSize:  maxSize,
		logger:   logger,
	}
}

// Fetch は書類参照を解決して内容を取得する。
// 参照が安全でない場合は security.ErrDocumentBlocked をラップしたエラーを返す。
func (f *DocumentFetcher) Fetch(ctx context.Context, sess *model.Session, ref string) (*Document, error) {
	target, err := f.guard.Resolve(f.client.BaseURL(), ref)
	if err != nil {
		f.logger.Warn("書類参照がブロックされました",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	var resp *http.Response
	if target.SameOrigin {
		resp, err = f.client.Open(ctx, sess, target.URL)
	} else {
		resp, err = f.fetchExternal(ctx, target.URL)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > f.maxSize {
		return nil, ErrDocumentTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, &Error{Op: OpFetchDocument, StatusCode: resp.StatusCode, Err: fmt.Errorf("書類の読み取りに失敗しました: %w", err)}
	}
	if int64(len(body)) > f.maxSize {
		return nil, ErrDocumentTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return &Document{
		Name:        documentName(target.URL),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (f *DocumentFetcher) fetchExternal(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Op: OpFetchDocument, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.external.Do(req)
	if err != nil {
		f.logger.Error("外部書類の取得に失敗しました",
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return nil, &Error{Op: OpFetchDocument, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &Error{Op: OpFetchDocument, StatusCode: resp.StatusCode, Err: fmt.Errorf("外部書類の取得先がステータス %d を返しました", resp.StatusCode)}
	}
	return resp, nil
}

func documentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
