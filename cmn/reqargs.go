package cmn

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ReqArgs is a small request builder: directory client calls and
// control-plane pulls are assembled through one of these rather than ad hoc
// http.NewRequest calls scattered across call sites. (memdirectory's
// notification fan-out posts with its http.Client directly.)
type ReqArgs struct {
	Method string
	Base   string // scheme://host:port
	Path   string
	Query  url.Values
	Body   []byte
}

// Req turns the args into an *http.Request bound to ctx.
func (args *ReqArgs) Req(ctx context.Context) (*http.Request, error) {
	u := strings.TrimSuffix(args.Base, "/") + args.Path
	if len(args.Query) > 0 {
		u += "?" + args.Query.Encode()
	}
	var body *strings.Reader
	if args.Body != nil {
		body = strings.NewReader(string(args.Body))
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, args.Method, u, body)
	if err != nil {
		return nil, errors.Wrapf(err, "cmn: build request %s %s", args.Method, u)
	}
	if args.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
