// internal/auth/bridge.go
package auth

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/api/schemas"
)

const noReferenceIDMessage = "No referenceId in auto sign-on response."

// Bridge converts harvested browser cookies into an HTTP session and
// completes the server-side confirmation handshake.
type Bridge struct {
	authType    schemas.AuthType
	sessionOpts SessionOptions
	logger      *zap.Logger
}

// NewBridge creates a bridge whose failures are attributed to authType.
func NewBridge(authType schemas.AuthType, opts SessionOptions, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Bridge{authType: authType, sessionOpts: opts, logger: logger.Named("bridge")}
}

// Bridge builds a new session holding cookies, POSTs an empty body to
// confirmURL with those cookies attached, and validates the acknowledgment.
// The returned session carries no headers yet.
func (b *Bridge) Bridge(ctx context.Context, cookies []schemas.BrowserCookie, confirmURL string) (*Session, schemas.AckPayload, error) {
	session := NewSession(b.sessionOpts)
	for _, c := range cookies {
		session.SetCookie(c.Name, c.Value)
	}
	b.logger.Debug("Cookies transplanted.", zap.Int("count", len(cookies)))

	req, err := session.Request(ctx)
	if err != nil {
		return nil, schemas.AckPayload{}, err
	}
	resp, err := req.Post(confirmURL)
	if err != nil {
		return nil, schemas.AckPayload{}, fmt.Errorf("auto sign-on confirmation request failed: %w", err)
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		b.logger.Warn("Confirmation endpoint returned a non-success status.",
			zap.Int("status", resp.StatusCode()))
	}

	ack, err := b.parseAck(body)
	if err != nil {
		return nil, schemas.AckPayload{}, err
	}
	return session, ack, nil
}

func (b *Bridge) parseAck(body []byte) (schemas.AckPayload, error) {
	if !gjson.ValidBytes(body) {
		b.logger.Debug("Confirmation response is not JSON.", zap.Int("bytes", len(body)))
		return schemas.AckPayload{}, schemas.NewAuthSSOError(b.authType, noReferenceIDMessage)
	}
	id, ok := referenceID(gjson.GetBytes(body, "referenceId"))
	if !ok {
		return schemas.AckPayload{}, schemas.NewAuthSSOError(b.authType, noReferenceIDMessage)
	}
	return schemas.AckPayload{ReferenceID: id, Raw: body}, nil
}

// referenceID accepts a non-empty string or a non-zero number. Booleans,
// null, objects and arrays never identify a sign-on.
func referenceID(ref gjson.Result) (string, bool) {
	switch ref.Type {
	case gjson.String:
		return ref.Str, ref.Str != ""
	case gjson.Number:
		return ref.Raw, ref.Float() != 0
	default:
		return "", false
	}
}
