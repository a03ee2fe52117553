package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/ipfs"
	"github.com/token-lab/token-lab-server/pkg/lab/config"
)

// Pinner pins content to IPFS
type Pinner interface {
	PinFile(ctx context.Context, fileName string, content io.Reader) (*ipfs.Pin, error)
	PinJson(ctx context.Context, name string, content interface{}) (*ipfs.Pin, error)
}

// TokenMetadata is the off-chain json document referenced by the on-chain
// metadata account.
type TokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	ExternalUrl string `json:"external_url"`
}

// Uploader pins the token image and metadata document to IPFS.
type Uploader struct {
	log        *logrus.Entry
	conf       *config.Config
	pinner     Pinner
	httpClient *http.Client
}

func NewUploader(conf *config.Config, pinner Pinner) *Uploader {
	return &Uploader{
		log:        logrus.StandardLogger().WithField("type", "metadata/uploader"),
		conf:       conf,
		pinner:     pinner,
		httpClient: http.DefaultClient,
	}
}

// Upload pins the image referenced by imageReference, then pins a metadata
// json document referencing it. The returned url resolves the metadata
// document through an IPFS gateway.
func (u *Uploader) Upload(ctx context.Context, name, symbol, imageReference string) (string, error) {
	image, fileName, err := u.fetchImage(ctx, imageReference)
	if err != nil {
		return "", err
	}

	imagePin, err := u.pinner.PinFile(ctx, fileName, bytes.NewReader(image))
	if err != nil {
		return "", errors.Wrap(err, "error pinning image")
	}

	doc := &TokenMetadata{
		Name:        name,
		Symbol:      symbol,
		Description: u.conf.TokenDescription.Get(ctx),
		Image:       imagePin.GatewayUrl(),
		ExternalUrl: u.conf.TokenExternalUrl.Get(ctx),
	}

	metadataPin, err := u.pinner.PinJson(ctx, fmt.Sprintf("%s-metadata.json", symbol), doc)
	if err != nil {
		return "", errors.Wrap(err, "error pinning metadata")
	}

	if gateway := u.conf.PinataGatewayUrl.Get(ctx); len(gateway) > 0 {
		return fmt.Sprintf("%s%s", gateway, metadataPin.Cid), nil
	}
	return metadataPin.GatewayUrl(), nil
}

func (u *Uploader) fetchImage(ctx context.Context, imageReference string) ([]byte, string, error) {
	if strings.HasPrefix(imageReference, "http://") || strings.HasPrefix(imageReference, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageReference, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "error creating http request")
		}

		resp, err := u.httpClient.Do(req)
		if err != nil {
			return nil, "", errors.Wrap(err, "error fetching image")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", errors.Errorf("received http status %d fetching image", resp.StatusCode)
		}

		image, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", errors.Wrap(err, "error reading image")
		}

		fileName := filepath.Base(strings.SplitN(imageReference, "?", 2)[0])
		return image, fileName, nil
	}

	image, err := os.ReadFile(imageReference)
	if err != nil {
		return nil, "", errors.Wrap(err, "error reading image file")
	}
	return image, filepath.Base(imageReference), nil
}
