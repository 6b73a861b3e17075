package eveapi

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// Row is one record of an API rowset. The API exposes every value as an
// XML attribute, so fields arrive untyped; the wallet mapper decides what
// each one becomes.
type Row map[string]string

// UnmarshalXML collects all attributes of a <row/> element.
func (r *Row) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	m := make(Row, len(start.Attr))
	for _, attr := range start.Attr {
		m[attr.Name.Local] = attr.Value
	}
	*r = m
	return d.Skip()
}

// Get returns the named field and whether it was present on the row.
func (r Row) Get(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}

// Int64 parses the named field as an integer, returning 0 when absent or
// malformed.
func (r Row) Int64(name string) int64 {
	v, err := strconv.ParseInt(r[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Character is one entry of the APIKeyInfo characters rowset.
type Character struct {
	CharacterID     int64
	Name            string
	CorporationID   int64
	CorporationName string
}

// KeyInfo describes a keypair as the API sees it.
type KeyInfo struct {
	AccessMask int64
	Type       string
	Expires    string
	Characters []Character
}

// APIError is a rejection by the EVE API itself: bad credentials, revoked
// key, insufficient access mask. The HTTP exchange succeeded.
type APIError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eveapi: error %d: %s", e.Code, e.Message)
}

// HTTPError is a transport-level failure: the request never produced a
// parseable API document.
type HTTPError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("eveapi: http request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("eveapi: http request %s: status %d", e.URL, e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return e.Err }

type rowset struct {
	Name string `xml:"name,attr"`
	Rows []Row  `xml:"row"`
}

type keyElement struct {
	AccessMask int64    `xml:"accessMask,attr"`
	Type       string   `xml:"type,attr"`
	Expires    string   `xml:"expires,attr"`
	Rowsets    []rowset `xml:"rowset"`
}

type apiResponse struct {
	XMLName     xml.Name    `xml:"eveapi"`
	CurrentTime string      `xml:"currentTime"`
	CachedUntil string      `xml:"cachedUntil"`
	Error       *APIError   `xml:"error"`
	Result      resultBlock `xml:"result"`
}

type resultBlock struct {
	Key     *keyElement `xml:"key"`
	Rowsets []rowset    `xml:"rowset"`
}
