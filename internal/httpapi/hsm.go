package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/thales"
)

type GenerateKeyRequest struct {
	KeyType string `json:"key_type" binding:"required,len=3,numeric"`
}

type CommandResponse struct {
	Command   string            `json:"command"`
	ErrorCode string            `json:"error_code"`
	Fields    map[string]string `json:"fields"`
}

type TranslatePINRequest struct {
	TPK      string `json:"tpk" binding:"required"`
	ZPK      string `json:"zpk" binding:"required"`
	PinBlock string `json:"pin_block" binding:"required,len=16,hexadecimal"`
	PAN      string `json:"pan" binding:"required,numeric,min=13,max=19"`
}

type MACRequest struct {
	Key     string `json:"key" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type VerifyMACRequest struct {
	Key     string `json:"key" binding:"required"`
	MAC     string `json:"mac" binding:"required,len=8,hexadecimal"`
	Message string `json:"message" binding:"required"`
}

// Random returns 16 random hex characters from C6.
func (h *Handler) Random(c *gin.Context) {
	const op = "handler.Random"

	random, err := h.client.GenerateRandom(c.Request.Context())
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"random": random})
}

// GenerateKey runs A0 for the requested key type and returns the response fields.
func (h *Handler) GenerateKey(c *gin.Context) {
	const op = "handler.GenerateKey"

	var req GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.client.GenerateKey(c.Request.Context(), thales.KeyType(req.KeyType))
	if err != nil {
		h.fail(c, op, err)
		return
	}

	fields := make(map[string]string, len(res.Layout))
	for _, f := range res.Layout {
		fields[f.Name] = res.Get(f.Name)
	}
	c.JSON(http.StatusOK, CommandResponse{
		Command:   string(hsm.CMD_GENERATE_KEY),
		ErrorCode: string(res.ErrorCode),
		Fields:    fields,
	})
}

// TranslatePIN re-encrypts a PIN block from a TPK to a ZPK with CA.
func (h *Handler) TranslatePIN(c *gin.Context) {
	const op = "handler.TranslatePIN"

	var req TranslatePINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pin, err := h.client.TranslatePINTPKToZPK(c.Request.Context(), thales.PINTranslation{
		SourceKey:      req.TPK,
		DestinationKey: req.ZPK,
		PinBlock:       req.PinBlock,
		PAN:            req.PAN,
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pin_block": pin})
}

// GenerateMAC computes the C2 MAC of the message bytes.
func (h *Handler) GenerateMAC(c *gin.Context) {
	const op = "handler.GenerateMAC"

	var req MACRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mac, err := h.client.GenerateMAC(c.Request.Context(), req.Key, []byte(req.Message))
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mac": mac})
}

// VerifyMAC checks a MAC with C4. A wrong MAC is a successful request.
func (h *Handler) VerifyMAC(c *gin.Context) {
	const op = "handler.VerifyMAC"

	var req VerifyMACRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ok, err := h.client.VerifyMAC(c.Request.Context(), req.Key, req.MAC, []byte(req.Message))
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": ok})
}
