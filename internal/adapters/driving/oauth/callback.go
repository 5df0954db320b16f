// Package oauth receives OAuth redirects on a loopback address and opens
// consent pages in the user's browser.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// DefaultCallbackPath is used when a generated redirect URI is needed.
const DefaultCallbackPath = "/callback"

// CallbackServer handles one OAuth redirect.
// It listens on the host and port of a loopback redirect URI and hands the
// authorization code, or the failure, to Wait.
type CallbackServer struct {
	mu            sync.Mutex
	addr          string
	path          string
	expectedState string
	results       chan callbackResult
	server        *http.Server
	listener      net.Listener
}

type callbackResult struct {
	code string
	err  error
}

// NewCallbackServer creates a callback server for redirectURI, which must be
// an http URL on a loopback host with an explicit port.
func NewCallbackServer(redirectURI, expectedState string) (*CallbackServer, error) {
	addr, path, err := ListenAddress(redirectURI)
	if err != nil {
		return nil, err
	}
	return &CallbackServer{
		addr:          addr,
		path:          path,
		expectedState: expectedState,
		results:       make(chan callbackResult, 1),
	}, nil
}

// ListenAddress splits a loopback redirect URI into a listen address and
// the callback path.
func ListenAddress(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("%w: redirect uri: %w", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: redirect uri %q must use http", domain.ErrInvalidInput, redirectURI)
	}
	host := u.Hostname()
	if host != "localhost" && !isLoopbackIP(host) {
		return "", "", fmt.Errorf("%w: redirect uri %q is not a loopback address", domain.ErrInvalidInput, redirectURI)
	}
	if u.Port() == "" {
		return "", "", fmt.Errorf("%w: redirect uri %q needs an explicit port", domain.ErrInvalidInput, redirectURI)
	}

	path = u.Path
	if path == "" {
		path = "/"
	}
	if host == "localhost" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, u.Port()), path, nil
}

func isLoopbackIP(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start begins listening. It fails if the address is in use.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	router := chi.NewRouter()
	router.Get(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(callbackResult{err: err})
		}
	}()

	logger.With("addr", s.addr, "path", s.path).Debug("oauth callback server listening")
	return nil
}

// deliver keeps the first result; later callbacks are ignored.
func (s *CallbackServer) deliver(r callbackResult) {
	select {
	case s.results <- r:
	default:
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		s.deliver(callbackResult{err: fmt.Errorf("%w: provider returned %s: %s", domain.ErrAuthorizationFailed, errParam, desc)})
		writePage(w, http.StatusBadRequest, "Authorisation failed", desc)
		return
	}

	if q.Get("state") != s.expectedState {
		s.deliver(callbackResult{err: domain.ErrStateMismatch})
		writePage(w, http.StatusBadRequest, "Authorisation failed", "The state parameter did not match.")
		return
	}

	code := q.Get("code")
	if code == "" {
		s.deliver(callbackResult{err: fmt.Errorf("%w: no authorization code received", domain.ErrAuthorizationFailed)})
		writePage(w, http.StatusBadRequest, "Authorisation failed", "No authorisation code was received.")
		return
	}

	s.deliver(callbackResult{code: code})
	writePage(w, http.StatusOK, "Authorisation successful", "You can close this window and return to sleepsync.")
}

// Wait blocks until a callback arrives or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.results:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// Addr returns the listen address, including the bound port once started.
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

var pageTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>sleepsync - {{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #FAFAFA; }
        .container { text-align: center; background: white; padding: 48px 64px; border-radius: 16px; border: 1px solid #C7C8CC; }
        h1 { color: #333F50; margin: 0 0 8px 0; font-size: 24px; }
        p { color: #7B8088; margin: 0; font-size: 16px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, struct{ Title, Message string }{title, message})
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// FindAvailablePort finds an available loopback port in the given range.
func FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", startPort, endPort)
}

// LoopbackRedirectURI returns a redirect URI on the first free port in
// the given range.
func LoopbackRedirectURI(startPort, endPort int) (string, error) {
	port, err := FindAvailablePort(startPort, endPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, DefaultCallbackPath), nil
}
