// internal/auth/headers.go
package auth

import (
	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/config"
)

// HeaderProjector installs the downstream service's authentication headers
// on a bridged session. Rules are validated when the configuration loads, so
// projection itself cannot fail.
type HeaderProjector struct {
	rules []config.HeaderRule
}

// NewHeaderProjector creates a projector for the given rules.
func NewHeaderProjector(rules []config.HeaderRule) *HeaderProjector {
	return &HeaderProjector{rules: append([]config.HeaderRule(nil), rules...)}
}

// NewHeaderProjectorFromConfig resolves the configured profile.
func NewHeaderProjectorFromConfig(cfg config.HeadersConfig) *HeaderProjector {
	return NewHeaderProjector(cfg.EffectiveRules())
}

// Rules returns a copy of the projector's rules.
func (p *HeaderProjector) Rules() []config.HeaderRule {
	return append([]config.HeaderRule(nil), p.rules...)
}

// RequiredParams lists fragment parameters that "param" rules read.
func (p *HeaderProjector) RequiredParams() []string {
	var params []string
	for _, r := range p.rules {
		if r.Source == config.HeaderSourceParam {
			params = append(params, r.Param)
		}
	}
	return params
}

// Project sets every configured header on session, replacing prior values.
// The result depends only on ack and params.
func (p *HeaderProjector) Project(session *Session, ack schemas.AckPayload, params schemas.QueryParams) {
	for name, value := range p.Compute(ack, params) {
		session.SetHeader(name, value)
	}
}

// Compute returns the header set Project would install.
func (p *HeaderProjector) Compute(ack schemas.AckPayload, params schemas.QueryParams) map[string]string {
	out := make(map[string]string, len(p.rules))
	for _, r := range p.rules {
		var v string
		switch r.Source {
		case config.HeaderSourceReferenceID:
			v = ack.ReferenceID
		case config.HeaderSourceInstanceID:
			v = params.InstanceID()
		case config.HeaderSourceParam:
			v = params.Get(r.Param)
		case config.HeaderSourceStatic:
			v = r.Value
		}
		out[r.Name] = r.Prefix + v
	}
	return out
}
