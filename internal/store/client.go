// Package store はリモートの請求ストア（InsurAIバックエンド）のRESTクライアントを提供する。
// 認証情報は呼び出しごとに明示的なセッションとして受け取り、グローバルな状態を持たない。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/insurai/claimdesk/internal/metrics"
	"github.com/insurai/claimdesk/internal/model"
)

const (
	// maxErrorBodySize はエラーレスポンスから読み取る最大バイト数。
	maxErrorBodySize = 4 * 1024
	// maxErrorTextSize はテキスト形式のエラーメッセージとして保持する最大バイト数。
	maxErrorTextSize = 200
	// maxResponseSize は一覧レスポンスの最大バイト数。
	maxResponseSize = 16 * 1024 * 1024
	userAgent       = "claimdesk/1.0"
)

// 操作名。ログとメトリクスのラベルに使用する。
const (
	OpFetchClaims          = "fetch_claims"
	OpApproveClaim         = "approve_claim"
	OpRejectClaim          = "reject_claim"
	OpFetchNotifications   = "fetch_notifications"
	OpMarkNotificationRead = "mark_notification_read"
	OpFetchDocument        = "fetch_document"
)

// Client はストアAPIのクライアント。
// 1つのクライアントを全セッションで共有し、送信レートはlimiterで制御する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    *url.URL
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// limiterがnilの場合は送信レートを制限しない。collectorがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, limiter *rate.Limiter, collector metrics.MetricsCollector) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ストアのベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ストアのベースURLが不正です: %q", baseURL)
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    u,
		limiter:    limiter,
		metrics:    collector,
	}, nil
}

// BaseURL はストアのベースURLのコピーを返す。
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// FetchClaims は全請求をストアの返却順で取得する。
func (c *Client) FetchClaims(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
	var claims []model.Claim
	if _, err := c.doJSON(ctx, sess, OpFetchClaims, http.MethodGet, []string{"claims", "all"}, nil, nil, &claims); err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return claims, nil
}

// ApproveClaim は請求を承認する。
// ストアが更新後の請求を返さなかった場合はnilを返す（リクエスト自体は成功している）。
func (c *Client) ApproveClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	return c.reviewClaim(ctx, sess, OpApproveClaim, "approve", id, remarks)
}

// RejectClaim は請求を却下する。
func (c *Client) RejectClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	return c.reviewClaim(ctx, sess, OpRejectClaim, "reject", id, remarks)
}

type remarksBody struct {
	Remarks string `json:"remarks"`
}

func (c *Client) reviewClaim(ctx context.Context, sess *model.Session, op, verb string, id model.RecordID, remarks string) (*model.Claim, error) {
	var claim model.Claim
	decoded, err := c.doJSON(ctx, sess, op, http.MethodPut, []string{"claims", verb, id.String()}, nil, remarksBody{Remarks: remarks}, &claim)
	if err != nil {
		return nil, err
	}
	if !decoded {
		return nil, nil
	}
	return &claim, nil
}

// FetchNotifications はセッションのユーザー・ロール宛ての通知を取得する。
func (c *Client) FetchNotifications(ctx context.Context, sess *model.Session) ([]model.Notification, error) {
	if sess == nil {
		return nil, &Error{Op: OpFetchNotifications, StatusCode: http.StatusUnauthorized, Err: ErrMissingToken}
	}
	q := url.Values{}
	q.Set("role", string(sess.Role))

	var notifications []model.Notification
	path := []string{"notifications", "user", sess.UserID}
	if _, err := c.doJSON(ctx, sess, OpFetchNotifications, http.MethodGet, path, q, nil, &notifications); err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return notifications, nil
}

// MarkNotificationRead は通知を既読にする。
// ストアが更新後の通知を返さなかった場合はnilを返す。
func (c *Client) MarkNotificationRead(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error) {
	var n model.Notification
	decoded, err := c.doJSON(ctx, sess, OpMarkNotificationRead, http.MethodPut, []string{"notifications", id.String(), "read"}, nil, struct{}{}, &n)
	if err != nil {
		return nil, err
	}
	if !decoded {
		return nil, nil
	}
	return &n, nil
}

// doJSON はJSONリクエストを送信し、レスポンスをoutにデコードする。
// レスポンスボディが空またはJSONオブジェクト・配列でない場合はfalseを返す。
func (c *Client) doJSON(ctx context.Context, sess *model.Session, op, method string, path []string, query url.Values, in, out any) (bool, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return false, &Error{Op: op, Err: fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	resp, err := c.do(ctx, sess, op, method, c.resolve(path, query), body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("ストアのレスポンスボディの読み取りに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return false, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '{' && data[0] != '[') {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("ストアのレスポンスのパースに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return false, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}
	return true, nil
}

// Open は認証付きでGETリクエストを送信し、成功時のレスポンスをそのまま返す。
// 呼び出し側がBodyを閉じる責任を持つ。targetURLはストアと同一オリジンであること。
func (c *Client) Open(ctx context.Context, sess *model.Session, targetURL string) (*http.Response, error) {
	return c.do(ctx, sess, OpFetchDocument, http.MethodGet, targetURL, nil)
}

// do は送信レートを待ってからリクエストを実行し、2xx以外をErrorに変換する。
func (c *Client) do(ctx context.Context, sess *model.Session, op, method, target string, body io.Reader) (*http.Response, error) {
	if sess == nil || sess.StoreToken == "" {
		return nil, &Error{Op: op, StatusCode: http.StatusUnauthorized, Err: ErrMissingToken}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("送信レートの待機が中断されました: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+sess.StoreToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordStoreRequest(op, 0, time.Since(start))
		c.logger.Error("ストアAPIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, &Error{Op: op, Err: err}
	}
	c.metrics.RecordStoreRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg := readErrorMessage(resp.Body)
		c.logger.Warn("ストアAPIがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("user_id", sess.UserID),
		)
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Err:        fmt.Errorf("ストアがステータス %d を返しました", resp.StatusCode),
		}
	}

	return resp, nil
}

// resolve はベースURLにパスセグメントを連結する。各セグメントは個別にエスケープされる。
func (c *Client) resolve(segments []string, query url.Values) string {
	u := *c.baseURL
	path := strings.TrimRight(u.Path, "/")
	rawPath := strings.TrimRight(u.EscapedPath(), "/")
	for _, seg := range segments {
		path += "/" + seg
		rawPath += "/" + url.PathEscape(seg)
	}
	u.Path = path
	u.RawPath = rawPath
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// readErrorMessage はエラーレスポンスからメッセージを取り出す。
// {"message": "..."} または {"error": "..."} 形式のJSONか、短いテキストに対応する。
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return ""
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	if data[0] == '{' {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			if body.Message != "" {
				return body.Message
			}
			return body.Error
		}
		return ""
	}
	return truncateUTF8(string(data), maxErrorTextSize)
}

// truncateUTF8 は文字の途中で切らないようにsを最大nバイトに切り詰める。
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
