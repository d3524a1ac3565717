package userinfo

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/session"
)

// HTTPProvider queries the IAM bulk basic user endpoint.
type HTTPProvider struct {
	doer      session.JSONDoer
	baseURL   string
	namespace string
}

func NewHTTPProvider(doer session.JSONDoer, baseURL, namespace string) (*HTTPProvider, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if doer == nil || baseURL == "" || namespace == "" {
		return nil, oops.Code("USERINFO_CONFIG").
			With("base_url", baseURL).
			With("namespace", namespace).
			Errorf("userinfo: base url, namespace and transport are required")
	}

	return &HTTPProvider{doer: doer, baseURL: baseURL, namespace: namespace}, nil
}

type bulkRequest struct {
	UserIDs []string `json:"userIds"`
}

type bulkResponse struct {
	Data []struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		AvatarURL   string `json:"avatarUrl"`
	} `json:"data"`
}

func (p *HTTPProvider) BulkUserInfo(ctx context.Context, localUser string, ids []string) ([]Info, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	endpoint := p.baseURL + "/iam/v3/public/namespaces/" + url.PathEscape(p.namespace) + "/users/bulk/basic"

	var out bulkResponse
	if err := p.doer.DoJSON(ctx, http.MethodPost, endpoint, "userinfo.bulk_basic", bulkRequest{UserIDs: ids}, &out); err != nil {
		return nil, oops.Code("USERINFO_BULK_FAILED").With("local_user", localUser).With("ids", len(ids)).Wrap(err)
	}

	infos := make([]Info, 0, len(out.Data))
	for _, item := range out.Data {
		if item.UserID == "" {
			continue
		}

		infos = append(infos, Info{UserID: item.UserID, DisplayName: item.DisplayName, AvatarURL: item.AvatarURL})
	}

	return infos, nil
}
