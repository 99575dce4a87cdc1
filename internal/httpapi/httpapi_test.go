package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/thales"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "U0123456789ABCDEF0123456789ABCDEF"

type answer struct {
	errorCode string
	payload   string
	err       error
}

// fakeHSM answers by command code.
type fakeHSM struct {
	answers map[hsm.CommandCode]answer
	sent    []string
}

func (f *fakeHSM) Do(_ context.Context, cmd hsm.Command) (*hsm.Response, error) {
	msg, err := cmd.Message()
	if err != nil {
		return nil, err
	}
	f.sent = append(f.sent, string(msg))

	a, ok := f.answers[cmd.Code()]
	if !ok {
		return nil, &hsm.ConnectionError{Addr: "fake", Err: hsm.ErrSessionClosed}
	}
	if a.err != nil {
		return nil, a.err
	}

	body := "HEAD" + cmd.Code().ResponseCode() + a.errorCode + a.payload
	raw := append([]byte{byte(len(body) >> 8), byte(len(body))}, body...)
	resp, err := hsm.ParseResponse(raw, cmd.Layout())
	if err != nil {
		return nil, err
	}
	resp.Command = cmd.Code()
	return resp, nil
}

func newTestRouter(t *testing.T, answers map[hsm.CommandCode]answer) (*gin.Engine, *fakeHSM) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := test.NewNullLogger()
	fake := &fakeHSM{answers: answers}
	return NewRouter(NewHandler(thales.NewClient(fake), logger)), fake
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRandom(t *testing.T) {
	r, fake := newTestRouter(t, map[hsm.CommandCode]answer{
		hsm.CMD_GENERATE_RANDOM: {errorCode: "00", payload: "9F3A01B2C4D5E6F7"},
	})

	w := perform(r, http.MethodGet, "/v1/random", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9F3A01B2C4D5E6F7", decode(t, w)["random"])
	assert.Equal(t, []string{"C6"}, fake.sent)
}

func TestGenerateKey(t *testing.T) {
	r, fake := newTestRouter(t, map[hsm.CommandCode]answer{
		hsm.CMD_GENERATE_KEY: {errorCode: "00", payload: testKey + "A1B2C3"},
	})

	w := perform(r, http.MethodPost, "/v1/keys", `{"key_type":"001"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "A0", resp.Command)
	assert.Equal(t, "00", resp.ErrorCode)
	assert.Equal(t, map[string]string{"KEY": testKey, "KEY_CHK": "A1B2C3"}, resp.Fields)
	assert.Equal(t, []string{"A00001U"}, fake.sent)
}

func TestGenerateKey_HsmError(t *testing.T) {
	r, _ := newTestRouter(t, map[hsm.CommandCode]answer{
		hsm.CMD_GENERATE_KEY: {errorCode: "05"},
	})

	w := perform(r, http.MethodPost, "/v1/keys", `{"key_type":"001"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "05", resp.ErrorCode)
	assert.Equal(t, "[05] Invalid key length flag", resp.Details)
}

func TestGenerateKey_BadRequests(t *testing.T) {
	r, fake := newTestRouter(t, nil)

	for name, body := range map[string]string{
		"Missing Field":    `{}`,
		"Invalid JSON":     `{"key_type":`,
		"Invalid Key Type": `{"key_type":"X"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := perform(r, http.MethodPost, "/v1/keys", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, fake.sent)
}

func TestTranslatePIN(t *testing.T) {
	r, fake := newTestRouter(t, map[hsm.CommandCode]answer{
		hsm.CMD_TRANSLATE_PIN_TPK_ZPK: {errorCode: "00", payload: "04FEDCBA9876543210"},
	})

	body := `{"tpk":"` + testKey + `","zpk":"` + testKey + `","pin_block":"0123456789ABCDEF","pan":"4111111111111111"}`
	w := perform(r, http.MethodPost, "/v1/pin/translate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "FEDCBA9876543210", decode(t, w)["pin_block"])
	require.Len(t, fake.sent, 1)
	assert.True(t, strings.HasPrefix(fake.sent[0], "CA"+testKey+testKey+"12"))
}

func TestTranslatePIN_ValidationDetails(t *testing.T) {
	r, fake := newTestRouter(t, nil)

	body := `{"tpk":"` + testKey + `","zpk":"` + testKey + `","pin_block":"0123","pan":"41111111111X1111"}`
	w := perform(r, http.MethodPost, "/v1/pin/translate", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	details, ok := decode(t, w)["details"].(map[string]any)
	require.True(t, ok, w.Body.String())
	assert.Equal(t, "must satisfy len", details["PinBlock"])
	assert.Equal(t, "must satisfy numeric", details["PAN"])
	assert.Empty(t, fake.sent)
}

func TestMAC(t *testing.T) {
	r, fake := newTestRouter(t, map[hsm.CommandCode]answer{
		hsm.CMD_GENERATE_MAC: {errorCode: "00", payload: "C6D75325"},
		hsm.CMD_VERIFY_MAC:   {errorCode: "01"},
	})

	w := perform(r, http.MethodPost, "/v1/mac", `{"key":"`+testKey+`","message":"0123456789"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "C6D75325", decode(t, w)["mac"])
	assert.Equal(t, "C20330"+testKey+"000A0123456789", fake.sent[0])

	w = perform(r, http.MethodPost, "/v1/mac/verify", `{"key":"`+testKey+`","mac":"C6D75325","message":"0123456789"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["verified"])
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Timeout", &hsm.TimeoutError{Command: hsm.CMD_GENERATE_RANDOM, Timeout: time.Second}, http.StatusGatewayTimeout},
		{"Request Deadline", &hsm.TimeoutError{Command: hsm.CMD_GENERATE_RANDOM, Timeout: time.Millisecond, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"Connection", &hsm.ConnectionError{Addr: "hsm:1500", Err: hsm.ErrSessionClosed}, http.StatusServiceUnavailable},
		{"Pool Closed", hsm.ErrPoolClosed, http.StatusServiceUnavailable},
		{"Malformed", &hsm.MalformedResponseError{Reason: "bad"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, map[hsm.CommandCode]answer{
				hsm.CMD_GENERATE_RANDOM: {err: tt.err},
			})
			w := perform(r, http.MethodGet, "/v1/random", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestInspect(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := perform(r, http.MethodPost, "/v1/asn1/inspect", `{"data":"30 09 02 02 01 2C 04 03 61 62 63"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp InspectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hex", resp.Encoding)
	assert.Equal(t, 11, resp.Length)
	assert.Equal(t, "30090202012C0403616263", resp.Hex)
	assert.Contains(t, resp.Tree, "  [0002] INTEGER (2): 012C")

	require.Len(t, resp.Nodes, 3)
	assert.Equal(t, InspectNode{Path: "/", Tag: "SEQUENCE", Offset: 0, Length: 9}, resp.Nodes[0])
	assert.Equal(t, "/1", resp.Nodes[2].Path)
	assert.Equal(t, "OCTET_STRING", resp.Nodes[2].Tag)
}

func TestInspect_Errors(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"Unknown Encoding", `{"data":"3000","encoding":"Morse"}`, http.StatusBadRequest},
		{"Wrong Encoding", `{"data":"zz","encoding":"Hex"}`, http.StatusBadRequest},
		{"Not ASN.1", `{"data":"30 05 02","encoding":"Hex"}`, http.StatusUnprocessableEntity},
		{"Missing Data", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodPost, "/v1/asn1/inspect", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
