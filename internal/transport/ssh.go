package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/stone-age-io/nbtoff/internal/config"
	"github.com/stone-age-io/nbtoff/internal/netbios"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// remoteCommand is what runs at the far end: this same binary, enforcing
// on its own host and emitting the Result as JSON on stdout. Nothing else
// travels over the channel.
const remoteCommand = "nbtoff -local -json"

// SSH dispatches the enforcement action to remote hosts over SSH
type SSH struct {
	User    string
	KeyFile string
	Port    int
	Timeout time.Duration
	Logger  *zap.Logger

	signer ssh.Signer
}

// NewSSH builds the SSH transport from config, loading and parsing the
// private key up front so a bad key fails the run before dispatch.
func NewSSH(cfg config.SSHConfig, logger *zap.Logger) (*SSH, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", cfg.KeyFile, err)
	}

	return &SSH{
		User:    cfg.User,
		KeyFile: cfg.KeyFile,
		Port:    cfg.Port,
		Timeout: cfg.Timeout,
		Logger:  logger,
		signer:  signer,
	}, nil
}

// Execute connects to the host, runs the enforcement command, and decodes
// the Result it prints. Any failure on this path is the host's failure
// alone; the dispatcher keeps going.
func (s *SSH) Execute(ctx context.Context, host string) (netbios.Result, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(s.Port))

	clientCfg := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(s.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.Timeout,
	}

	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return netbios.Result{}, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return netbios.Result{}, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return netbios.Result{}, fmt.Errorf("open session on %s: %w", host, err)
	}
	defer session.Close()

	s.Logger.Debug("Running remote enforcement",
		zap.String("host", host),
		zap.String("command", remoteCommand))

	out, err := session.Output(remoteCommand)
	if err != nil {
		return netbios.Result{}, fmt.Errorf("run %q on %s: %w", remoteCommand, host, err)
	}

	res, err := decodeResult(out, host)
	if err != nil {
		return netbios.Result{}, err
	}
	return res, nil
}

// decodeResult parses the JSON Result a remote run prints on stdout. The
// remote process reports its own hostname; the dispatch name wins so the
// operator sees the name they targeted.
func decodeResult(out []byte, host string) (netbios.Result, error) {
	var res netbios.Result
	if err := json.Unmarshal(out, &res); err != nil {
		return netbios.Result{}, fmt.Errorf("malformed result from %s: %w", host, err)
	}
	res.Host = host
	return res, nil
}
