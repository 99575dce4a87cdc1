package thales

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// fakeHSM answers every command with the same error code and payload.
type fakeHSM struct {
	errorCode string
	payload   string
	err       error

	sent []byte
}

func (f *fakeHSM) Do(_ context.Context, cmd hsm.Command) (*hsm.Response, error) {
	msg, err := cmd.Message()
	if err != nil {
		return nil, err
	}
	f.sent = msg
	if f.err != nil {
		return nil, f.err
	}

	body := "HEAD" + cmd.Code().ResponseCode() + f.errorCode + f.payload
	raw := append([]byte{byte(len(body) >> 8), byte(len(body))}, body...)

	resp, err := hsm.ParseResponse(raw, cmd.Layout())
	if err != nil {
		return nil, err
	}
	resp.Command = cmd.Code()
	return resp, nil
}

func TestClient_GenerateKey(t *testing.T) {
	fake := &fakeHSM{errorCode: "00", payload: testKey + testCheck}
	c := NewClient(fake)

	res, err := c.GenerateKey(context.Background(), KeyTypeZPK)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if got := string(fake.sent); got != "A00001U" {
		t.Errorf("sent %q", got)
	}
	if got := res.Get("KEY"); got != testKey {
		t.Errorf("KEY = %q", got)
	}

	want := strings.Join([]string{
		"=== [A0] GENERATE KEY REPORT ===",
		"Header: HEAD",
		"Status: [00] No error",
		"Fields:",
		"    - KEY: " + testKey,
		"    - KEY_CHK: " + testCheck,
	}, "\n")
	if got := res.Describe(); got != want {
		t.Errorf("Describe() =\n%s\nwant\n%s", got, want)
	}
	if got := res.Values(); len(got) != 2 || got[1] != testCheck {
		t.Errorf("Values() = %v", got)
	}
}

func TestClient_HsmError(t *testing.T) {
	fake := &fakeHSM{errorCode: "05"}
	c := NewClient(fake)

	res, err := c.GenerateKey(context.Background(), KeyTypeZPK)
	if !errors.Is(err, hsm.ErrHsm) {
		t.Fatalf("error = %v, want ErrHsm", err)
	}
	var hsmErr *hsm.HsmError
	if !errors.As(err, &hsmErr) || hsmErr.Code != hsm.ERR_INVALID_KEY_LEN_FLAG {
		t.Errorf("error = %#v", err)
	}
	if res == nil {
		t.Fatal("result must be returned with the HSM error")
	}
	if _, ok := res.Lookup("KEY"); ok {
		t.Error("fields must not be parsed on error")
	}

	want := "=== [A0] GENERATE KEY REPORT ===\nHeader: HEAD\nStatus: [05] Invalid key length flag"
	if got := res.Describe(); got != want {
		t.Errorf("Describe() = %q", got)
	}
}

func TestClient_TransportError(t *testing.T) {
	boom := errors.New("boom")
	c := NewClient(&fakeHSM{err: boom})

	if _, err := c.GenerateRandom(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if _, err := c.TranslatePIN(context.Background(), PINTranslation{}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("invalid input should fail before sending, got %v", err)
	}
}

func TestClient_Fields(t *testing.T) {
	ctx := context.Background()
	pin := PINTranslation{SourceKey: testKey, DestinationKey: testKey, PinBlock: testPIN, PAN: "123456789012"}

	t.Run("Random", func(t *testing.T) {
		got, err := NewClient(&fakeHSM{errorCode: "00", payload: "9F3A01B2C4D5E6F7"}).GenerateRandom(ctx)
		if err != nil || got != "9F3A01B2C4D5E6F7" {
			t.Errorf("GenerateRandom() = %q, %v", got, err)
		}
	})

	t.Run("CA Skips PIN Length", func(t *testing.T) {
		got, err := NewClient(&fakeHSM{errorCode: "00", payload: "04FEDCBA9876543210"}).TranslatePINTPKToZPK(ctx, pin)
		if err != nil || got != "FEDCBA9876543210" {
			t.Errorf("TranslatePINTPKToZPK() = %q, %v", got, err)
		}
	})

	t.Run("D4", func(t *testing.T) {
		got, err := NewClient(&fakeHSM{errorCode: "00", payload: "FEDCBA9876543210"}).TranslatePIN(ctx, pin)
		if err != nil || got != "FEDCBA9876543210" {
			t.Errorf("TranslatePIN() = %q, %v", got, err)
		}
	})

	t.Run("C2", func(t *testing.T) {
		got, err := NewClient(&fakeHSM{errorCode: "00", payload: "C6D75325"}).GenerateMAC(ctx, testKey, []byte("0123456789"))
		if err != nil || got != "C6D75325" {
			t.Errorf("GenerateMAC() = %q, %v", got, err)
		}
	})
}

func TestClient_VerifyMAC(t *testing.T) {
	tests := []struct {
		code    string
		want    bool
		wantErr bool
	}{
		{"00", true, false},
		{"01", false, false},
		{"10", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := NewClient(&fakeHSM{errorCode: tt.code})
			got, err := c.VerifyMAC(context.Background(), testKey, "C6D75325", []byte("msg"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyMAC() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("VerifyMAC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_LoadFormatting(t *testing.T) {
	for code, want := range map[string]bool{"00": true, "15": false} {
		got, err := NewClient(&fakeHSM{errorCode: code}).LoadFormatting(context.Background(), ">L>001")
		if err != nil {
			t.Fatalf("LoadFormatting(%s) error = %v", code, err)
		}
		if got != want {
			t.Errorf("LoadFormatting(%s) = %v, want %v", code, got, want)
		}
	}
}

func TestClient_GenerateRSAKeyPair(t *testing.T) {
	pub := testPublicKey(t)
	private := bytes.Repeat([]byte{0x5A}, 12)
	payload := string(pub.Bytes()) + "0012" + string(private)

	fake := &fakeHSM{errorCode: "00", payload: payload}
	cert, err := NewClient(fake).GenerateRSAKeyPair(context.Background(), 1024, 0)
	if err != nil {
		t.Fatalf("GenerateRSAKeyPair() error = %v", err)
	}
	if !cert.Public.Equal(pub) {
		t.Errorf("public key = %X", cert.Public.Bytes())
	}
	if !bytes.Equal(cert.Private.Bytes(), private) {
		t.Errorf("private key = %X", cert.Private.Bytes())
	}

	fake.payload = string(pub.Bytes()) + "0099" + string(private)
	if _, err := NewClient(fake).GenerateRSAKeyPair(context.Background(), 1024, 0); err == nil {
		t.Error("truncated private key should fail")
	}
}

func TestClient_MACPublicKey(t *testing.T) {
	pub := testPublicKey(t)
	fake := &fakeHSM{errorCode: "00", payload: "\x4D\x50\x7D\xD1" + string(pub.Bytes())}

	c := NewClient(fake)
	mac, err := c.MACPublicKey(context.Background(), pub)
	if err != nil {
		t.Fatalf("MACPublicKey() error = %v", err)
	}
	if mac != "4D507DD1" {
		t.Errorf("MAC = %s", mac)
	}

	res, err := c.Run(context.Background(), MACPublicKey(pub))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Hex(FieldPublicKey); got != pub.Hex() {
		t.Errorf("PublicKey = %s, want %s", got, pub.Hex())
	}
	if !strings.Contains(res.Describe(), "    - MAC: 4D507DD1 (4 bytes)") {
		t.Errorf("binary fields should be shown as hex:\n%s", res.Describe())
	}
}

func TestClient_InitialTMKs(t *testing.T) {
	tmk1LMK, tmk1KIA := "U"+strings.Repeat("1", 32), "U"+strings.Repeat("2", 32)
	tmk2LMK, tmk2KIA := "U"+strings.Repeat("3", 32), "U"+strings.Repeat("4", 32)
	payload := tmk1LMK + tmk1KIA + "111111" +
		"??????" + // bytes [82,88) are not reported
		tmk2LMK + tmk2KIA + "222222" +
		strings.Repeat("5", 16) + strings.Repeat("6", 16)

	req, err := InitialTMKs(testKey)
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewClient(&fakeHSM{errorCode: "00", payload: payload}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := map[string]string{
		"TMK1(LMK)":  tmk1LMK,
		"TMK1(KIA)":  tmk1KIA,
		"TMK1 CHECK": "111111",
		"TMK2(LMK)":  tmk2LMK,
		"TMK2(KIA)":  tmk2KIA,
		"TMK2 CHECK": "222222",
		"PPASN(LMK)": strings.Repeat("5", 16),
		"PPASN(KIA)": strings.Repeat("6", 16),
	}
	for name, v := range want {
		if got := res.Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
}

func TestClient_ZoneKeys(t *testing.T) {
	var payload strings.Builder
	for _, c := range []string{"P", "A", "E"} {
		payload.WriteString("U" + strings.Repeat(c, 32)) // under LMK
		payload.WriteString("X" + strings.Repeat(c, 32)) // under ZMK
		payload.WriteString(strings.Repeat(c, 6))
	}

	req, err := SetZoneKeys(testKey)
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewClient(&fakeHSM{errorCode: "00", payload: payload.String()}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := res.Get(FieldZAKZMK); got != "X"+strings.Repeat("A", 32) {
		t.Errorf("ZAK(ZMK) = %q", got)
	}
	if got := res.Get(FieldZEKCheck); got != "EEEEEE" {
		t.Errorf("ZEK Check Value = %q", got)
	}
	if got := len(res.Values()); got != 9 {
		t.Errorf("len(Values()) = %d, want 9", got)
	}
}
