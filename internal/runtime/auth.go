// internal/runtime/auth.go
package runtime

import (
	"context"
	"os"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/mailharvest/internal/config"
)

type Scope int

const (
	ScopeReadonly Scope = iota
	ScopeSend
)

// gmailService authenticates against Gmail with the credential files in
// the configured directory. localcred chooses scopes based on what the
// binary requests on first run.
func gmailService(ctx context.Context, cfg *config.Config, scope Scope) (*gmail.Service, error) {
	cfgDir := cfg.Gmail.CredentialsDir
	if cfgDir == "" {
		cfgDir = os.ExpandEnv("$HOME/.gmailctl")
	}

	var svc *gmail.Service
	var err error
	switch scope {
	case ScopeReadonly:
		svc, err = (localcred.Provider{}).Service(ctx, cfgDir)
	case ScopeSend:
		svc, err = (localcred.Provider{}).Service(ctx, cfgDir)
	default:
		panic("unknown scope")
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}
