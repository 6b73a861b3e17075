package eveapi

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public EVE API endpoint.
const DefaultBaseURL = "https://api.eveonline.com"

const (
	pathAPIKeyInfo             = "/account/APIKeyInfo.xml.aspx"
	pathCharWalletJournal      = "/char/WalletJournal.xml.aspx"
	pathCorpWalletJournal      = "/corp/WalletJournal.xml.aspx"
	pathCharWalletTransactions = "/char/WalletTransactions.xml.aspx"
	pathCorpWalletTransactions = "/corp/WalletTransactions.xml.aspx"
)

// Client talks to the EVE XML API. It is safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	cache   Cache
	log     *logrus.Logger
}

// NewClient builds a client against baseURL. cache may be nil, in which
// case every call hits the API regardless of its cachedUntil markers.
func NewClient(baseURL string, cache Cache, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		cache:   cache,
		log:     log,
	}
}

// Auth binds a credential pair to the client. The returned context issues
// all subsequent calls with keyID and vCode attached.
func (c *Client) Auth(keyID int64, vCode string) *AuthContext {
	return &AuthContext{c: c, keyID: keyID, vCode: vCode}
}

// AuthContext is a client scoped to one keypair.
type AuthContext struct {
	c     *Client
	keyID int64
	vCode string
}

// WalletParams select the wallet and page size of a journal or
// transaction fetch.
type WalletParams struct {
	Corporation bool
	CharacterID int64
	AccountKey  string
	RowCount    int
}

// APIKeyInfo returns the key's access mask, type and associated
// characters.
func (a *AuthContext) APIKeyInfo(ctx context.Context) (*KeyInfo, error) {
	resp, err := a.fetch(ctx, pathAPIKeyInfo, nil)
	if err != nil {
		return nil, err
	}
	if resp.Result.Key == nil {
		return nil, fmt.Errorf("eveapi: APIKeyInfo response carries no key element")
	}
	key := resp.Result.Key
	info := &KeyInfo{
		AccessMask: key.AccessMask,
		Type:       key.Type,
		Expires:    key.Expires,
	}
	for _, rs := range key.Rowsets {
		if rs.Name != "characters" {
			continue
		}
		for _, row := range rs.Rows {
			info.Characters = append(info.Characters, Character{
				CharacterID:     row.Int64("characterID"),
				Name:            row["characterName"],
				CorporationID:   row.Int64("corporationID"),
				CorporationName: row["corporationName"],
			})
		}
	}
	return info, nil
}

// WalletJournal fetches journal rows for one wallet division. The API
// names the rowset "entries" on some endpoints and "transactions" on
// others; both are accepted.
func (a *AuthContext) WalletJournal(ctx context.Context, p WalletParams) ([]Row, error) {
	path := pathCharWalletJournal
	if p.Corporation {
		path = pathCorpWalletJournal
	}
	resp, err := a.fetch(ctx, path, walletQuery(p))
	if err != nil {
		return nil, err
	}
	return walletRows(resp), nil
}

// WalletTransactions fetches market transaction rows for one wallet
// division.
func (a *AuthContext) WalletTransactions(ctx context.Context, p WalletParams) ([]Row, error) {
	path := pathCharWalletTransactions
	if p.Corporation {
		path = pathCorpWalletTransactions
	}
	resp, err := a.fetch(ctx, path, walletQuery(p))
	if err != nil {
		return nil, err
	}
	return walletRows(resp), nil
}

func walletQuery(p WalletParams) url.Values {
	q := url.Values{}
	q.Set("characterID", strconv.FormatInt(p.CharacterID, 10))
	q.Set("accountKey", p.AccountKey)
	if p.RowCount > 0 {
		q.Set("rowCount", strconv.Itoa(p.RowCount))
	}
	return q
}

// walletRows normalizes the two rowset shapes into one. Endpoint variants
// label the payload rowset either "entries" or "transactions"; the first
// rowset wins if neither label is present.
func walletRows(resp *apiResponse) []Row {
	for _, rs := range resp.Result.Rowsets {
		if rs.Name == "entries" || rs.Name == "transactions" {
			return rs.Rows
		}
	}
	if len(resp.Result.Rowsets) > 0 {
		return resp.Result.Rowsets[0].Rows
	}
	return nil
}

func (a *AuthContext) fetch(ctx context.Context, path string, query url.Values) (*apiResponse, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("keyID", strconv.FormatInt(a.keyID, 10))
	query.Set("vCode", a.vCode)
	fullURL := a.c.baseURL + path + "?" + query.Encode()

	body, hit := a.c.cacheGet(ctx, fullURL)
	if !hit {
		var err error
		body, err = a.c.get(ctx, fullURL)
		if err != nil {
			return nil, err
		}
	}

	var resp apiResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, &HTTPError{URL: path, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if !hit {
		a.c.cacheSet(ctx, fullURL, body, resp.CachedUntil)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &HTTPError{URL: fullURL, Err: err}
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, &HTTPError{URL: fullURL, Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &HTTPError{URL: fullURL, Err: err}
	}
	// The API reports application errors inside a 200 document; any other
	// status is a transport problem.
	if res.StatusCode != http.StatusOK {
		return nil, &HTTPError{URL: fullURL, StatusCode: res.StatusCode}
	}
	return body, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(ctx, key)
}

func (c *Client) cacheSet(ctx context.Context, key string, body []byte, cachedUntil string) {
	if c.cache == nil || cachedUntil == "" {
		return
	}
	until, err := time.Parse("2006-01-02 15:04:05", cachedUntil)
	if err != nil {
		if c.log != nil {
			c.log.WithField("cachedUntil", cachedUntil).Debug("unparseable cachedUntil, response not cached")
		}
		return
	}
	ttl := time.Until(until.UTC())
	if ttl <= 0 {
		return
	}
	c.cache.Set(ctx, key, body, ttl)
}
