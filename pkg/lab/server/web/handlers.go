package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/token-lab/token-lab-server/pkg/lab/minter"
	"github.com/token-lab/token-lab-server/pkg/metrics"
	"github.com/token-lab/token-lab-server/pkg/solana"
)

const maxUploadSize = 2 << 20

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

type mintRequestBody struct {
	TokenName        string `json:"tokenName"`
	TokenSymbol      string `json:"tokenSymbol"`
	UserPublicKey    string `json:"userPublicKey"`
	Quantity         uint64 `json:"quantity"`
	Decimals         int    `json:"decimals"`
	PaymentType      string `json:"paymentType"`
	ImagePath        string `json:"imagePath"`
	MintChecked      bool   `json:"mintChecked"`
	FreezeChecked    bool   `json:"freezeChecked"`
	ImmutableChecked bool   `json:"immutableChecked"`
}

func (b *mintRequestBody) toMintRequest() *minter.MintRequest {
	return &minter.MintRequest{
		TokenName:             b.TokenName,
		TokenSymbol:           b.TokenSymbol,
		RequesterAddress:      b.UserPublicKey,
		Quantity:              b.Quantity,
		Decimals:              b.Decimals,
		PaymentType:           b.PaymentType,
		ImageReference:        b.ImagePath,
		RevokeMintAuthority:   b.MintChecked,
		RevokeFreezeAuthority: b.FreezeChecked,
		RevokeUpdateAuthority: b.ImmutableChecked,
	}
}

type mintResponseBody struct {
	Message              string   `json:"message"`
	ExplorerLink         string   `json:"explorerLink"`
	MintAddress          string   `json:"mintAddress"`
	TokenAccount         string   `json:"tokenAccount"`
	MetadataUploadOutput string   `json:"metadataUploadOutput,omitempty"`
	TotalCharged         float64  `json:"totalCharged"`
	ActionsPerformed     []string `json:"actionsPerformed"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	s.serveMint(w, r, s.minter.Mint, "Mint")
}

func (s *Server) handleCompressMint(w http.ResponseWriter, r *http.Request) {
	s.serveMint(w, r, s.minter.CompressMint, "CompressMint")
}

func (s *Server) serveMint(
	w http.ResponseWriter,
	r *http.Request,
	mint func(ctx context.Context, req *minter.MintRequest) (*minter.MintResult, error),
	method string,
) {
	tracer := metrics.TraceMethodCall(r.Context(), "server/web", method)
	defer tracer.End()

	var body mintRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := mint(r.Context(), body.toMintRequest())
	if err != nil {
		tracer.OnError(err)
		s.writeMintError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, &mintResponseBody{
		Message:              "Token minted successfully!",
		ExplorerLink:         result.ExplorerLink,
		MintAddress:          result.MintAddress,
		TokenAccount:         result.TokenAccount,
		MetadataUploadOutput: result.MetadataUrl,
		TotalCharged:         result.TotalCharged,
		ActionsPerformed:     result.ActionsPerformed,
	})
}

func (s *Server) writeMintError(w http.ResponseWriter, err error) {
	var classified *minter.Error
	if !errors.As(err, &classified) {
		s.log.WithError(err).Warn("unclassified mint failure")
		s.writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	if classified.Kind() == minter.KindValidation {
		s.writeError(w, http.StatusBadRequest, classified.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, classified.Error())
}

type uploadResponseBody struct {
	Message   string `json:"message"`
	PublicUrl string `json:"publicUrl"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tracer := metrics.TraceMethodCall(r.Context(), "server/web", "Upload")
	defer tracer.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "File exceeds the 2MB limit.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Missing file.")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read file.")
		return
	}

	contentType := http.DetectContentType(content)
	if _, ok := allowedImageTypes[contentType]; !ok {
		s.writeError(w, http.StatusBadRequest, "Only JPEG, PNG, WebP, and GIF images are allowed.")
		return
	}

	name := fmt.Sprintf("uploads/%d-%s", time.Now().UnixNano(), filepath.Base(header.Filename))
	publicUrl, err := s.assets.Upload(r.Context(), name, contentType, bytes.NewReader(content))
	if err != nil {
		tracer.OnError(err)
		s.log.WithError(err).Warn("failed to store uploaded file")
		s.writeError(w, http.StatusInternalServerError, "Failed to store uploaded file.")
		return
	}

	s.writeJson(w, http.StatusOK, &uploadResponseBody{
		Message:   "File uploaded successfully.",
		PublicUrl: publicUrl,
	})
}

type healthResponseBody struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Memory struct {
		AllocMb      uint64 `json:"allocMb"`
		TotalAllocMb uint64 `json:"totalAllocMb"`
		SysMb        uint64 `json:"sysMb"`
	} `json:"memory"`
	Rpc struct {
		LatencyMs int64 `json:"latencyMs"`
	} `json:"rpc"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := &healthResponseBody{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	body.Memory.AllocMb = memStats.Alloc / (1 << 20)
	body.Memory.TotalAllocMb = memStats.TotalAlloc / (1 << 20)
	body.Memory.SysMb = memStats.Sys / (1 << 20)

	body.Hostname, _ = os.Hostname()

	start := time.Now()
	if _, err := s.solanaClient.GetSlot(solana.CommitmentProcessed); err != nil {
		body.Status = "degraded"
		body.Rpc.LatencyMs = -1
	} else {
		body.Rpc.LatencyMs = time.Since(start).Milliseconds()
	}

	s.writeJson(w, http.StatusOK, body)
}
