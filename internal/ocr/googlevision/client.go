// Package googlevision recognizes page text with the Cloud Vision API.
package googlevision

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"attestor/internal/ocr"
)

// handwritingHint steers document detection towards handwriting.
const handwritingHint = "en-t-i0-handwrit"

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// Client implements ocr.Recognizer.
type Client struct {
	annotate annotateFunc
	close    func() error
}

// New dials the Vision API. An empty credentials file falls back to
// application default credentials.
func New(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &Client{
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return c.BatchAnnotateImages(ctx, req)
		},
		close: c.Close,
	}, nil
}

// Builder adapts New to ocr.Builder for lazy construction.
func Builder(credentialsFile string) ocr.Builder {
	return func(ctx context.Context) (ocr.Recognizer, error) {
		return New(ctx, credentialsFile)
	}
}

// Recognize sends one image. Printed text uses plain text detection;
// handwriting uses dense document detection with a handwriting hint.
func (c *Client) Recognize(ctx context.Context, image []byte, mode ocr.Mode) (string, error) {
	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: image},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
	}
	if mode == ocr.ModeHandwritten {
		req.Features = []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}
		req.ImageContext = &visionpb.ImageContext{LanguageHints: []string{handwritingHint}}
	}

	resp, err := c.annotate(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if e := r.GetError(); e != nil && e.GetCode() != 0 {
		return "", fmt.Errorf("vision annotate: %s", e.GetMessage())
	}
	if full := r.GetFullTextAnnotation(); full != nil && full.GetText() != "" {
		return full.GetText(), nil
	}
	if anns := r.GetTextAnnotations(); len(anns) > 0 {
		return anns[0].GetDescription(), nil
	}
	return "", nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
