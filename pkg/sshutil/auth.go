package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// IdentityEnv names a private key file offered after the agent's keys.
// CI pipelines usually have a deploy key on disk and no agent.
const IdentityEnv = "SITEPUSH_SSH_KEY"

var sshAgent struct {
	once   sync.Once
	conn   net.Conn
	client agent.ExtendedAgent
}

// agentSigners returns the agent's signer source, or nil when there is no
// agent or it holds no keys. An empty agent ahead of the key files would
// spend one of the server's auth attempts for nothing.
func agentSigners() func() ([]ssh.Signer, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	sshAgent.once.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		sshAgent.conn = conn
		sshAgent.client = agent.NewClient(conn)
	})
	if sshAgent.client == nil {
		return nil
	}

	if signers, err := sshAgent.client.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return sshAgent.client.Signers
}

// CloseAgent closes the agent connection opened by an earlier Dial.
func CloseAgent() {
	if sshAgent.conn != nil {
		sshAgent.conn.Close()
	}
}

// keyFiles lists private keys to try for t, most specific first.
func keyFiles(t Target) []string {
	files := []string{
		expandHome(os.Getenv(IdentityEnv)),
		t.IdentityFile,
		userSSHPath("id_ed25519"),
		userSSHPath("id_ecdsa"),
		userSSHPath("id_rsa"),
	}

	seen := make(map[string]bool)
	out := files[:0]
	for _, f := range files {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// authMethods collects the agent and every readable key file. Keys that
// need a passphrase can't be used non-interactively; they are returned so
// the error can say which ones to ssh-add.
func authMethods(t Target) (methods []ssh.AuthMethod, encrypted []string) {
	if signers := agentSigners(); signers != nil {
		methods = append(methods, ssh.PublicKeysCallback(signers))
	}

	var keys []ssh.Signer
	for _, path := range keyFiles(t) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		var missing *ssh.PassphraseMissingError
		switch {
		case err == nil:
			keys = append(keys, signer)
		case stderrors.As(err, &missing):
			encrypted = append(encrypted, path)
		}
	}
	if len(keys) > 0 {
		methods = append(methods, ssh.PublicKeys(keys...))
	}
	return methods, encrypted
}

func noAuthError(t Target, encrypted []string) error {
	if len(encrypted) > 0 {
		return errors.New(errors.ErrSSH,
			"Your SSH keys need a passphrase: "+strings.Join(encrypted, ", "),
			addKeysHint(encrypted))
	}
	return errors.New(errors.ErrSSH,
		fmt.Sprintf("No SSH key to log in to %s with", t.Alias),
		fmt.Sprintf("Load a key into your agent with ssh-add, or set %s to the deploy key's path", IdentityEnv))
}

func addKeysHint(keys []string) string {
	var b strings.Builder
	b.WriteString("sitepush can't prompt for a passphrase. Add the key to your agent first:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  ssh-add %s", k)
	}
	return b.String()
}
