package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultClientID is the well-known public client used for the device-code
// grant when the operator has not registered a dedicated application.
const DefaultClientID = "14d82eec-204b-4c2f-b7e8-296a70dab67e"

// Scope sets per operation class. Reporting only reads the directory;
// enrollment and policy configuration need the read-write scopes.
var (
	ReadScopes = []string{
		"User.Read.All",
		"UserAuthenticationMethod.Read.All",
		"GroupMember.Read.All",
	}
	WriteScopes = []string{
		"User.Read.All",
		"UserAuthenticationMethod.ReadWrite.All",
		"Policy.ReadWrite.AuthenticationMethod",
		"Policy.ReadWrite.ConditionalAccess",
		"GroupMember.Read.All",
	}
)

// DeviceCodePrompt is called with the verification URI and one-time code
// the operator must enter in a browser to complete the device-code grant.
type DeviceCodePrompt func(verificationURI, userCode string)

// SessionConfig carries what is needed to establish a directory session.
type SessionConfig struct {
	TenantID  string
	ClientID  string
	Scopes    []string
	CachePath string // token cache file; empty disables caching
	Prompt    DeviceCodePrompt
	Log       *logrus.Logger
}

// Session is the process-wide authenticated directory session. It is
// established lazily on first Acquire and torn down with Close; there is a
// single thread of control so no locking is needed.
type Session struct {
	cfg    SessionConfig
	oauth  *oauth2.Config
	source oauth2.TokenSource
	log    *logrus.Logger
}

// NewSession builds an unauthenticated session. No network traffic happens
// until Acquire.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = ReadScopes
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: microsoft.AzureADEndpoint(cfg.TenantID),
			Scopes:   cfg.Scopes,
		},
		log: log,
	}, nil
}

// Acquire obtains a token source: a cached token when one is still usable,
// otherwise a fresh device-code grant. Safe to call more than once; later
// calls are no-ops.
func (s *Session) Acquire(ctx context.Context) error {
	if s.source != nil {
		return nil
	}

	if tok := s.loadCachedToken(); tok != nil {
		s.log.WithField("cache", s.cfg.CachePath).Debug("using cached directory token")
		s.source = s.oauth.TokenSource(ctx, tok)
		return nil
	}

	resp, err := s.oauth.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to start device-code grant: %w", err)
	}
	if s.cfg.Prompt != nil {
		s.cfg.Prompt(resp.VerificationURI, resp.UserCode)
	}

	tok, err := s.oauth.DeviceAccessToken(ctx, resp)
	if err != nil {
		return fmt.Errorf("device-code grant was not completed: %w", err)
	}
	s.source = s.oauth.TokenSource(ctx, tok)
	s.saveCachedToken(tok)
	return nil
}

// TokenSource returns the session's token source. Acquire must have
// succeeded first.
func (s *Session) TokenSource() oauth2.TokenSource {
	return s.source
}

// Close persists the freshest token (refresh may have rotated it) and drops
// the in-memory source. The session can be re-acquired afterwards.
func (s *Session) Close() error {
	if s.source == nil {
		return nil
	}
	tok, err := s.source.Token()
	if err == nil {
		s.saveCachedToken(tok)
	}
	s.source = nil
	return nil
}

// ClearCache removes the cached token file, forcing the next Acquire to run
// a fresh device-code grant.
func (s *Session) ClearCache() error {
	if s.cfg.CachePath == "" {
		return nil
	}
	if err := os.Remove(s.cfg.CachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}

func (s *Session) loadCachedToken() *oauth2.Token {
	if s.cfg.CachePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.cfg.CachePath)
	if err != nil {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		s.log.WithError(err).Debug("discarding unreadable token cache")
		return nil
	}
	// A token without a refresh token is useless once expired.
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil
	}
	return &tok
}

func (s *Session) saveCachedToken(tok *oauth2.Token) {
	if s.cfg.CachePath == "" || tok == nil {
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.CachePath), 0o700); err != nil {
		s.log.WithError(err).Debug("failed to create token cache directory")
		return
	}
	if err := os.WriteFile(s.cfg.CachePath, data, 0o600); err != nil {
		s.log.WithError(err).Debug("failed to write token cache")
	}
}
