package googlevision

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestor/internal/ocr"
)

func fakeClient(resp *visionpb.BatchAnnotateImagesResponse, err error, seen *[]*visionpb.AnnotateImageRequest) *Client {
	return &Client{annotate: func(_ context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		*seen = append(*seen, req.GetRequests()...)
		return resp, err
	}}
}

func TestRecognize(t *testing.T) {
	ctx := context.Background()

	t.Run("printed uses text detection", func(t *testing.T) {
		var seen []*visionpb.AnnotateImageRequest
		c := fakeClient(&visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				TextAnnotations: []*visionpb.EntityAnnotation{{Description: "Name: John Smith"}},
			}},
		}, nil, &seen)

		text, err := c.Recognize(ctx, []byte{0x89}, ocr.ModePrinted)
		require.NoError(t, err)
		assert.Equal(t, "Name: John Smith", text)
		require.Len(t, seen, 1)
		assert.Equal(t, visionpb.Feature_TEXT_DETECTION, seen[0].GetFeatures()[0].GetType())
		assert.Nil(t, seen[0].GetImageContext())
	})

	t.Run("handwriting uses document detection with a hint", func(t *testing.T) {
		var seen []*visionpb.AnnotateImageRequest
		c := fakeClient(&visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				FullTextAnnotation: &visionpb.TextAnnotation{Text: "DOB 01/05/1990"},
			}},
		}, nil, &seen)

		text, err := c.Recognize(ctx, []byte{0x89}, ocr.ModeHandwritten)
		require.NoError(t, err)
		assert.Equal(t, "DOB 01/05/1990", text)
		assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, seen[0].GetFeatures()[0].GetType())
		assert.Equal(t, []string{handwritingHint}, seen[0].GetImageContext().GetLanguageHints())
	})

	t.Run("no text is not an error", func(t *testing.T) {
		var seen []*visionpb.AnnotateImageRequest
		c := fakeClient(&visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{}},
		}, nil, &seen)
		text, err := c.Recognize(ctx, nil, ocr.ModePrinted)
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("transport errors propagate", func(t *testing.T) {
		var seen []*visionpb.AnnotateImageRequest
		c := fakeClient(nil, errors.New("deadline exceeded"), &seen)
		_, err := c.Recognize(ctx, nil, ocr.ModePrinted)
		assert.Error(t, err)
	})
}
