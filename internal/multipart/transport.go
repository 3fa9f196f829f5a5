package multipart

import (
	"context"

	"github.com/FairForge/s3rest/internal/s3http"
	"github.com/FairForge/s3rest/internal/signer"
)

// HTTPTransport is the production Transport: sign the descriptor, build
// an s3http.Request, send it, and return the captured response. It is the
// only Transport implementation that touches a real socket; tests
// substitute a fake that implements the same interface.
type HTTPTransport struct {
	Signer *signer.Signer
}

// Do signs d and sends it, choosing the request body from whichever of
// body/filePart is non-nil (at most one is set per call site; Initiate and
// Abort pass neither and send no body).
func (t *HTTPTransport) Do(ctx context.Context, d signer.RequestDescriptor, body []byte, fp *filePart) (int, []byte, []byte, error) {
	signed, err := t.Signer.SignHeaders(d)
	if err != nil {
		return 0, nil, nil, err
	}

	headers := make(map[string]string, len(d.Headers)+len(signed.AddedHeaders))
	for k, v := range d.Headers {
		headers[k] = v
	}
	for k, v := range signed.AddedHeaders {
		headers[k] = v
	}

	req := s3http.NewRequest(d.Endpoint, d.Path(), d.Method, d.Query, headers)

	switch {
	case fp != nil:
		if err := req.PutFromFileRange(fp.path, fp.offset, fp.length); err != nil {
			return 0, nil, nil, err
		}
	case body != nil:
		req.SetPostBody(body)
	}

	if err := req.Send(ctx); err != nil {
		return 0, nil, nil, err
	}

	return req.StatusCode(), req.GetResponseBody(), []byte(req.GetResponseHeaders()), nil
}
