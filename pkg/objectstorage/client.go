package objectstorage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/token-lab/token-lab-server/pkg/metrics"
)

const (
	metricsStructName = "objectstorage.client"
)

// Client stores and deletes blobs in a managed bucket
type Client interface {
	// Upload writes a blob and returns its publicly resolvable url
	Upload(ctx context.Context, name, contentType string, content io.Reader) (string, error)

	// Delete removes a blob. Deleting a blob that doesn't exist is not an
	// error.
	Delete(ctx context.Context, name string) error

	// ObjectName maps a url previously returned by Upload back to the blob
	// name. Returns false if the url doesn't reference this bucket.
	ObjectName(url string) (string, bool)
}

type firebaseClient struct {
	bucket     *storage.BucketHandle
	bucketName string
}

// NewFirebaseClient returns a Client backed by a Firebase storage bucket
func NewFirebaseClient(ctx context.Context, credentialsFile, bucketName string) (Client, error) {
	app, err := firebase.NewApp(
		ctx,
		&firebase.Config{StorageBucket: bucketName},
		option.WithCredentialsFile(credentialsFile),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing firebase app")
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing storage client")
	}

	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, errors.Wrap(err, "error getting default bucket")
	}

	return &firebaseClient{
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

func (c *firebaseClient) Upload(ctx context.Context, name, contentType string, content io.Reader) (string, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Upload")
	defer tracer.End()

	writer := c.bucket.Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		err = errors.Wrap(err, "error writing blob")
		tracer.OnError(err)
		return "", err
	}
	if err := writer.Close(); err != nil {
		err = errors.Wrap(err, "error finalizing blob")
		tracer.OnError(err)
		return "", err
	}

	return PublicUrl(c.bucketName, name), nil
}

func (c *firebaseClient) Delete(ctx context.Context, name string) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Delete")
	defer tracer.End()

	err := c.bucket.Object(name).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	if err != nil {
		err = errors.Wrap(err, "error deleting blob")
		tracer.OnError(err)
		return err
	}
	return nil
}

func (c *firebaseClient) ObjectName(url string) (string, bool) {
	return ObjectNameFromUrl(c.bucketName, url)
}

// PublicUrl returns the publicly resolvable url for a blob
func PublicUrl(bucketName, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, objectName)
}

// ObjectNameFromUrl maps a public blob url back to the blob name. Both the
// direct storage url and the firebase download url forms are recognized.
func ObjectNameFromUrl(bucketName, rawUrl string) (string, bool) {
	directPrefix := fmt.Sprintf("https://storage.googleapis.com/%s/", bucketName)
	if strings.HasPrefix(rawUrl, directPrefix) {
		name := strings.TrimPrefix(rawUrl, directPrefix)
		if len(name) == 0 {
			return "", false
		}
		return name, true
	}

	firebasePrefix := fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/", bucketName)
	if strings.HasPrefix(rawUrl, firebasePrefix) {
		escaped := strings.TrimPrefix(rawUrl, firebasePrefix)
		if queryStart := strings.Index(escaped, "?"); queryStart >= 0 {
			escaped = escaped[:queryStart]
		}
		name, err := url.PathUnescape(escaped)
		if err != nil || len(name) == 0 {
			return "", false
		}
		return name, true
	}

	return "", false
}
