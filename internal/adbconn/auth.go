/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * CNXN/AUTH state machine (C6)
 */

package adbconn

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xDvir/adbr-server/internal/adbproto"
)

const (
	authTimeout = 5 * time.Second

	privateKeyFile = "adbkey"
	publicKeyFile  = "adbkey.pub"
)

// Authenticate drives the CNXN -> optional AUTH(signature) ->
// AUTH(rsa-pub) -> CNXN state machine described in section 4.6: the
// caller must have already sent CNXN. keyDir holds adbkey/adbkey.pub.
func Authenticate(ctx context.Context, c *Conn, keyDir string, timeout time.Duration) error {
	txn := Transaction{LocalID: 0, RemoteID: 1}

	replies := c.ReadUntilAuthOrOpen(ctx, txn, timeout)
	step, ok := <-replies
	if !ok {
		return &UnexpectedError{Reason: "no reply while establishing connection"}
	}
	if step.Err != nil {
		return step.Err
	}

	switch step.Msg.Command {
	case adbproto.CmdOPEN:
		return nil // device already trusts this key
	case adbproto.CmdAUTH:
		return authenticate(ctx, c, keyDir, step.Msg.Data)
	default:
		return &UnexpectedError{Reason: fmt.Sprintf("unexpected response during connect: %s", step.Msg.Command)}
	}
}

func authenticate(ctx context.Context, c *Conn, keyDir string, token []byte) error {
	sig, err := signToken(filepath.Join(keyDir, privateKeyFile), token)
	if err != nil {
		return &UnauthorizedError{Reason: err.Error()}
	}

	sigMsg := adbproto.NewMessage(adbproto.CmdAUTH, adbproto.AuthSignature, 0, sig)
	if err := c.Write(ctx, sigMsg); err != nil {
		return err
	}

	respCtx, cancel := context.WithTimeout(ctx, authTimeout)
	resp, err := c.readLastMessage(respCtx)
	cancel()
	if err != nil {
		return &UnauthorizedError{Reason: err.Error()}
	}

	if resp.Command == adbproto.CmdCNXN {
		return nil
	}

	pub, err := os.ReadFile(filepath.Join(keyDir, publicKeyFile))
	if err != nil {
		return &UnauthorizedError{Reason: fmt.Sprintf("reading public key: %s", err)}
	}

	pubMsg := adbproto.NewMessage(adbproto.CmdAUTH, adbproto.AuthRSAPublic, 0, pub)
	if err := c.Write(ctx, pubMsg); err != nil {
		return err
	}

	finalCtx, cancel2 := context.WithTimeout(ctx, authTimeout)
	_, err = c.readLastMessage(finalCtx)
	cancel2()
	if err != nil {
		return &UnauthorizedError{Reason: err.Error()}
	}

	// The user must now accept the key on the device; the next
	// connect cycle will complete once they do.
	return nil
}

// signToken signs a 20-byte ADB auth challenge with the private key at
// path, prepending the SHA-1 DigestInfo header the way crypto/rsa does
// for PKCS#1 v1.5 signatures over a pre-computed digest
func signToken(path string, token []byte) ([]byte, error) {
	keyPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, token)
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}
