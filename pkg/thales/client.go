package thales

import (
	"context"
	"errors"
	"fmt"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/rsakey"
)

// Client sends catalog commands and unwraps their main fields.
//
// Methods returning a *Result also return an *hsm.HsmError when the HSM
// refused the request: the Result is still set so the prologue can be inspected.
type Client struct {
	HSM Doer
}

// NewClient creates a Client over a session or a pool.
func NewClient(d Doer) *Client {
	return &Client{HSM: d}
}

// Run sends req and wraps its response.
func (c *Client) Run(ctx context.Context, req *hsm.Request) (*Result, error) {
	resp, err := c.HSM.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := NewResult(resp, req.Layout())
	if err != nil {
		return nil, err
	}
	return res, resp.Err()
}

func (c *Client) field(ctx context.Context, req *hsm.Request, err error, name string) (string, error) {
	if err != nil {
		return "", err
	}
	res, err := c.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Get(name), nil
}

// GenerateKey generates a key of type t under the LMK.
func (c *Client) GenerateKey(ctx context.Context, t KeyType) (*Result, error) {
	req, err := GenerateKey(t)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, req)
}

// GenerateRandom returns 16 random hex characters.
func (c *Client) GenerateRandom(ctx context.Context) (string, error) {
	return c.field(ctx, GenerateRandom(), nil, FieldRandomNumber)
}

// TranslatePINTPKToZPK returns the PIN block re-encrypted under the ZPK.
func (c *Client) TranslatePINTPKToZPK(ctx context.Context, p PINTranslation) (string, error) {
	req, err := TranslatePINTPKToZPK(p)
	return c.field(ctx, req, err, FieldDestPIN)
}

// TranslatePIN returns the PIN block re-encrypted under the destination key.
func (c *Client) TranslatePIN(ctx context.Context, p PINTranslation) (string, error) {
	req, err := TranslatePIN(p)
	return c.field(ctx, req, err, FieldDestPIN)
}

// GenerateMAC returns the MAC of msg under zak.
func (c *Client) GenerateMAC(ctx context.Context, zak string, msg []byte) (string, error) {
	req, err := GenerateMAC(zak, msg)
	return c.field(ctx, req, err, FieldMAC)
}

// VerifyMAC reports whether mac authenticates msg. A verification failure is
// not an error.
func (c *Client) VerifyMAC(ctx context.Context, zak, mac string, msg []byte) (bool, error) {
	req, err := VerifyMAC(zak, mac, msg)
	if err != nil {
		return false, err
	}
	res, err := c.Run(ctx, req)
	switch {
	case err == nil:
		return true, nil
	case res != nil && res.ErrorCode.IsVerificationFailure():
		return false, nil
	default:
		return false, err
	}
}

// GenerateRSAKeyPair generates a key pair usable for signature and key management.
func (c *Client) GenerateRSAKeyPair(ctx context.Context, bits, exponent int) (*rsakey.Certificate, error) {
	req, err := GenerateRSAKeyPair(RSASignatureAndKey, bits, exponent, rsakey.EncodingDERUnsigned)
	if err != nil {
		return nil, err
	}
	res, err := c.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	cert, err := ParseKeyPair(res.Response)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hsm.CMD_GENERATE_RSA_KEY_PAIR, err)
	}
	return cert, nil
}

// MACPublicKey returns the MAC of pub as 8 hex characters.
func (c *Client) MACPublicKey(ctx context.Context, pub *rsakey.PublicKey) (string, error) {
	res, err := c.Run(ctx, MACPublicKey(pub))
	if err != nil {
		return "", err
	}
	return res.Hex(FieldMAC), nil
}

// LoadFormatting loads the mailer template and reports whether the HSM accepted it.
func (c *Client) LoadFormatting(ctx context.Context, formatting string) (bool, error) {
	req, err := LoadFormatting(formatting)
	if err != nil {
		return false, err
	}
	_, err = c.Run(ctx, req)
	if errors.Is(err, hsm.ErrHsm) {
		return false, nil
	}
	return err == nil, err
}
