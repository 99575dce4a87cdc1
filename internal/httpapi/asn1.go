package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gregLibert/hsm-gateway/pkg/asn1"
	"github.com/gregLibert/hsm-gateway/pkg/asnfmt"
)

type InspectRequest struct {
	Data string `json:"data" binding:"required"`
	// Encoding is an asnfmt encoding name. When empty the format is detected.
	Encoding string `json:"encoding"`
}

type InspectNode struct {
	Path   string `json:"path"`
	Tag    string `json:"tag"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Value  string `json:"value,omitempty"`
}

type InspectResponse struct {
	Encoding string        `json:"encoding"`
	Length   int           `json:"length"`
	Nodes    []InspectNode `json:"nodes"`
	Tree     string        `json:"tree"`
	Hex      string        `json:"hex"`
}

// Inspect decodes a DER/BER structure given as PEM, Base64 or hex and returns its tree.
func (h *Handler) Inspect(c *gin.Context) {
	var req InspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	enc := asnfmt.DetectFormat(req.Data)
	if req.Encoding != "" {
		var err error
		if enc, err = asnfmt.ParseEncodingType(req.Encoding); err != nil {
			badRequest(c, err)
			return
		}
	}

	raw, err := asnfmt.StringToBinary(req.Data, enc)
	if err != nil {
		badRequest(c, err)
		return
	}

	tree, err := asn1.ParseTree(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Status:  http.StatusUnprocessableEntity,
			Error:   "not an ASN.1 structure",
			Details: err.Error(),
		})
		return
	}

	resp := InspectResponse{
		Encoding: enc.String(),
		Length:   len(tree.Bytes()),
		Tree:     tree.Describe(),
	}
	resp.Hex, _ = asnfmt.BinaryToString(tree.Bytes(), asnfmt.HexRaw, asnfmt.WithUpperCase())

	tree.Walk(func(n asn1.Node, _ int) bool {
		node := InspectNode{
			Path:   tree.Path(n.ID),
			Tag:    n.TagName(),
			Offset: n.Offset,
			Length: n.PayloadLength,
		}
		if !n.Constructed {
			node.Value, _ = tree.ViewValue(n.ID)
		}
		resp.Nodes = append(resp.Nodes, node)
		return true
	})

	c.JSON(http.StatusOK, resp)
}
