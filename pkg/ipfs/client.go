package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"

	"github.com/token-lab/token-lab-server/pkg/metrics"
)

// Reference: https://docs.pinata.cloud/api-reference/endpoint/ipfs/pin-file-to-ipfs

const (
	DefaultApiBaseUrl     = "https://api.pinata.cloud/"
	DefaultGatewayBaseUrl = "https://gateway.pinata.cloud/ipfs/"

	pinFileEndpointName = "pinning/pinFileToIPFS"
	pinJsonEndpointName = "pinning/pinJSONToIPFS"
	unpinEndpointName   = "pinning/unpin"

	metricsStructName = "ipfs.client"
)

type Client struct {
	baseUrl    string
	jwt        string
	httpClient *http.Client
}

// NewClient returns a new client for pinning content to IPFS via Pinata
func NewClient(baseUrl, jwt string) *Client {
	return &Client{
		baseUrl:    baseUrl,
		jwt:        jwt,
		httpClient: http.DefaultClient,
	}
}

// Pin is a successfully pinned piece of content
type Pin struct {
	Cid  string
	Size uint64
}

// Uri returns the ipfs uri for the pinned content
func (p *Pin) Uri() string {
	return fmt.Sprintf("ipfs://%s", p.Cid)
}

// GatewayUrl returns a publicly resolvable gateway url for the pinned content
func (p *Pin) GatewayUrl() string {
	return fmt.Sprintf("%s%s", DefaultGatewayBaseUrl, p.Cid)
}

type jsonPinResponse struct {
	IpfsHash string `json:"IpfsHash"`
	PinSize  uint64 `json:"PinSize"`
}

// PinFile uploads and pins a raw file
func (c *Client) PinFile(ctx context.Context, fileName string, content io.Reader) (*Pin, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PinFile")
	defer tracer.End()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, errors.Wrap(err, "error creating multipart form")
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, errors.Wrap(err, "error writing file contents")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "error finalizing multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+pinFileEndpointName, &body)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	pin, err := c.submitPinRequest(req)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return pin, nil
}

type jsonPinJsonRequest struct {
	PinataContent  interface{}        `json:"pinataContent"`
	PinataMetadata jsonPinataMetadata `json:"pinataMetadata"`
}

type jsonPinataMetadata struct {
	Name string `json:"name"`
}

// PinJson uploads and pins a json document
func (c *Client) PinJson(ctx context.Context, name string, content interface{}) (*Pin, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PinJson")
	defer tracer.End()

	body, err := json.Marshal(&jsonPinJsonRequest{
		PinataContent:  content,
		PinataMetadata: jsonPinataMetadata{Name: name},
	})
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling json request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+pinJsonEndpointName, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	req.Header.Set("Content-Type", "application/json")

	pin, err := c.submitPinRequest(req)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return pin, nil
}

// Unpin removes previously pinned content. Unpinning content that is already
// gone is not an error.
func (c *Client) Unpin(ctx context.Context, cid string) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Unpin")
	defer tracer.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s%s/%s", c.baseUrl, unpinEndpointName, cid), nil)
	if err != nil {
		return errors.Wrap(err, "error creating http request")
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = errors.Wrap(err, "error executing http request")
		tracer.OnError(err)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		err = errors.Errorf("received http status %d: %s", resp.StatusCode, string(respBody))
		tracer.OnError(err)
		return err
	}
	return nil
}

func (c *Client) submitPinRequest(req *http.Request) (*Pin, error) {
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("received http status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed jsonPinResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling json response")
	}
	if len(parsed.IpfsHash) == 0 {
		return nil, errors.New("invalid response")
	}

	return &Pin{
		Cid:  parsed.IpfsHash,
		Size: parsed.PinSize,
	}, nil
}
