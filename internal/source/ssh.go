package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nmslite/drivetemp/internal/config"
)

// SSHSource runs a dump command on the appliance and returns its stdout.
type SSHSource struct {
	cfg config.SSHConfig
}

func NewSSHSource(cfg config.SSHConfig) *SSHSource {
	return &SSHSource{cfg: cfg}
}

func (s *SSHSource) Name() string { return "ssh:" + s.cfg.Addr() }

func (s *SSHSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clientConfig, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", s.cfg.Addr(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(s.cfg.Command) }()

	select {
	case <-ctx.Done():
		client.Close()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) && msg != "" {
				return nil, fmt.Errorf("dump command exited with status %d: %s", exitErr.ExitStatus(), msg)
			}
			return nil, fmt.Errorf("dump command failed: %w", err)
		}
	}
	return stdout.Bytes(), nil
}

func (s *SSHSource) clientConfig() (*ssh.ClientConfig, error) {
	authMethods, err := authMethods(s.cfg)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.cfg.KnownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(expandHome(s.cfg.KnownHostsFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.cfg.Timeout(),
	}, nil
}

// authMethods tries password auth first, then the private key.
func authMethods(cfg config.SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if cfg.PrivateKeyFile != "" {
		pem, err := os.ReadFile(expandHome(cfg.PrivateKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		key, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(key))
	}

	if len(methods) == 0 {
		return nil, errors.New("no authentication method provided (password or private_key_file required)")
	}
	return methods, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
