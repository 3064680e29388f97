package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrDocumentBlocked は書類参照が安全でない宛先を指している場合のエラー。
var ErrDocumentBlocked = errors.New("document reference blocked")

// DocumentTarget は書類参照を解決した取得先。
type DocumentTarget struct {
	// URL は取得する絶対URL。
	URL string
	// SameOrigin はストアと同一オリジンかどうか。
	// trueの場合はストアのBearerトークン付きで取得し、
	// falseの場合はトークンを付けずSSRF防止クライアントで取得する。
	SameOrigin bool
}

// DocumentGuardService は請求に添付された書類参照の検証機能のインターフェースを定義する。
type DocumentGuardService interface {
	// Resolve は書類参照をストアのベースURLに対して解決する。
	// "/uploads/x.pdf" のような相対参照はストアと同一オリジンとして扱う。
	// 外部の絶対URLはValidateURLの検証に通ったものだけを返す。
	Resolve(storeBase *url.URL, ref string) (DocumentTarget, error)

	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は外部URLの安全性を事前に検証する。
	ValidateURL(rawURL string) error
}

// allowedSchemes は外部書類の取得で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は外部書類の取得でブロックされるネットワーク範囲。
// safeurlはDNS解決後のIPアドレスも検証するため、ここでは静的なチェックのみを行う。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// documentGuard はDocumentGuardServiceの実装。
type documentGuard struct{}

// NewDocumentGuard はDocumentGuardServiceの新しいインスタンスを生成する。
func NewDocumentGuard() *documentGuard {
	return &documentGuard{}
}

// Resolve は書類参照を取得先に解決する。
func (g *documentGuard) Resolve(storeBase *url.URL, ref string) (DocumentTarget, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return DocumentTarget{}, fmt.Errorf("%w: empty reference", ErrDocumentBlocked)
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return DocumentTarget{}, fmt.Errorf("%w: invalid reference: %v", ErrDocumentBlocked, err)
	}

	// スキームもホストもない参照はストアのパスとして扱う
	if parsed.Scheme == "" && parsed.Host == "" {
		resolved := storeBase.ResolveReference(parsed)
		return DocumentTarget{URL: resolved.String(), SameOrigin: true}, nil
	}

	if sameOrigin(storeBase, parsed) {
		return DocumentTarget{URL: parsed.String(), SameOrigin: true}, nil
	}

	if err := g.ValidateURL(parsed.String()); err != nil {
		return DocumentTarget{}, fmt.Errorf("%w: %v", ErrDocumentBlocked, err)
	}
	return DocumentTarget{URL: parsed.String(), SameOrigin: false}, nil
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func (g *documentGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL はURLの安全性を事前に検証する。
// DNS解決を伴わない静的な検証を行う。
func (g *documentGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// スキーム検証: http/httpsのみ許可
	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// sameOrigin はスキーム・ホスト・ポートが一致するかを判定する。
func sameOrigin(base, u *url.URL) bool {
	return strings.EqualFold(base.Scheme, u.Scheme) &&
		strings.EqualFold(base.Hostname(), u.Hostname()) &&
		effectivePort(base) == effectivePort(u)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if strings.EqualFold(u.Scheme, "https") {
		return "443"
	}
	return "80"
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
