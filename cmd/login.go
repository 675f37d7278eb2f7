// -- cmd/login.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/internal/auth"
	"github.com/xkilldash9x/ssobridge/internal/observability"
)

// newLoginCmd creates the `login` command. Flags are bound to v at
// construction so they take precedence over file and environment values.
func newLoginCmd(v *viper.Viper, build strategyBuilder) *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Signs in through a browser and exports the resulting HTTP session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			strategy, err := build(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to set up sign-on: %w", err)
			}

			if cfg.SignOn.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.SignOn.Timeout)
				defer cancel()
			}

			logger.Info("Signing in", zap.String("strategy", strategy.Name().String()), zap.String("app_url", cfg.SignOn.AppURL))
			session, postRedirectURL, err := strategy.Authenticate(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Sign-on aborted")
				}
				return fmt.Errorf("sign-on failed: %w", err)
			}
			if postRedirectURL == "" {
				postRedirectURL = cfg.SignOn.PostRedirectURL
			}

			if probeURL, _ := cmd.Flags().GetString("probe-url"); probeURL != "" {
				if err := probeSession(ctx, session, probeURL, logger); err != nil {
					return err
				}
			}

			output, _ := cmd.Flags().GetString("output")
			return writeSession(cmd.OutOrStdout(), output, session, postRedirectURL)
		},
	}

	loginCmd.Flags().String("app-url", "", "Application URL that starts the SSO redirect. (Overrides config/env)")
	loginCmd.Flags().String("post-redirect-url", "", "URL to continue at after sign-on. (Overrides config/env)")
	loginCmd.Flags().Bool("headless", true, "Run the browser without a window. (Overrides config/env)")
	loginCmd.Flags().StringP("output", "o", "", "Write the session as JSON to this file instead of stdout.")
	loginCmd.Flags().String("probe-url", "", "GET this URL with the new session and report the status.")

	_ = v.BindPFlag("signon.app_url", loginCmd.Flags().Lookup("app-url"))
	_ = v.BindPFlag("signon.post_redirect_url", loginCmd.Flags().Lookup("post-redirect-url"))
	_ = v.BindPFlag("browser.headless", loginCmd.Flags().Lookup("headless"))

	return loginCmd
}

// sessionExport is what `login` prints.
type sessionExport struct {
	auth.SessionSnapshot
	PostRedirectURL string `json:"post_redirect_url,omitempty"`
}

func writeSession(stdout io.Writer, path string, session *auth.Session, postRedirectURL string) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(sessionExport{
		SessionSnapshot: session.Snapshot(),
		PostRedirectURL: postRedirectURL,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	// The file holds live credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session to %s: %w", path, err)
	}
	observability.GetLogger().Info("Session written", zap.String("path", path))
	return nil
}

func probeSession(ctx context.Context, session *auth.Session, probeURL string, logger *zap.Logger) error {
	req, err := session.Request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Get(probeURL)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	logger.Info("Probe completed", zap.String("url", probeURL), zap.Int("status", resp.StatusCode()))
	if resp.IsError() {
		return fmt.Errorf("probe %s returned %s", probeURL, resp.Status())
	}
	return nil
}
