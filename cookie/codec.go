package cookie

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultName is the cookie name used when Options.Name is empty.
const DefaultName = "gosession.session"

const minSecretLength = 32

var (
	// ErrInvalidPayload is returned by Encode for a payload with a missing field.
	ErrInvalidPayload = errors.New("cookie payload requires user id and session id")
	// ErrWeakSecret is returned by New when a signing secret is shorter than 32 bytes.
	ErrWeakSecret = errors.New("cookie signing secret must be at least 32 bytes")
)

// Payload is the only state kept client-side. It carries no claims; every
// request re-validates it against storage.
type Payload struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
}

func (p Payload) valid() bool {
	return p.UserID != "" && p.SessionID != ""
}

// Options controls the cookie attributes and encoding mode.
type Options struct {
	Name     string
	Path     string
	Domain   string
	SameSite http.SameSite
	Secure   bool
	MaxAge   time.Duration

	// Secret switches the codec to signed mode: values become HS256 tokens
	// and anything not signed with this key decodes to nil.
	Secret []byte
}

// Directive is a framework-neutral Set-Cookie instruction.
type Directive struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int // seconds
	SameSite http.SameSite
	Secure   bool
	HTTPOnly bool
	Delete   bool
}

// Cookie converts the directive to a net/http cookie.
func (d Directive) Cookie() *http.Cookie {
	c := &http.Cookie{
		Name:     d.Name,
		Value:    d.Value,
		Path:     d.Path,
		Domain:   d.Domain,
		MaxAge:   d.MaxAge,
		SameSite: d.SameSite,
		Secure:   d.Secure,
		HttpOnly: d.HTTPOnly,
	}
	if d.Delete {
		// net/http renders a negative MaxAge as "Max-Age=0".
		c.MaxAge = -1
	}
	return c
}

// String renders the directive as a Set-Cookie header value.
func (d Directive) String() string {
	return d.Cookie().String()
}

// Codec encodes and decodes session cookies. It is immutable and safe for
// concurrent use.
type Codec struct {
	opts   Options
	signer *signer
}

// New returns a codec for opts, filling defaults for Name, Path and SameSite.
func New(opts Options) (*Codec, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.MaxAge < 0 {
		return nil, errors.New("cookie max age must be >= 0")
	}

	c := &Codec{opts: opts}
	if len(opts.Secret) > 0 {
		if len(opts.Secret) < minSecretLength {
			return nil, ErrWeakSecret
		}
		secret := make([]byte, len(opts.Secret))
		copy(secret, opts.Secret)
		c.opts.Secret = secret
		c.signer = &signer{key: secret, ttl: opts.MaxAge}
	}
	return c, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.opts.Name
}

// Signed reports whether values are HS256-signed.
func (c *Codec) Signed() bool {
	return c.signer != nil
}

// Encode serializes p into a Set-Cookie directive. HttpOnly is always set.
func (c *Codec) Encode(p Payload) (Directive, error) {
	if !p.valid() {
		return Directive{}, ErrInvalidPayload
	}

	var value string
	if c.signer != nil {
		signed, err := c.signer.sign(p, time.Now())
		if err != nil {
			return Directive{}, err
		}
		value = signed
	} else {
		raw, err := json.Marshal(p)
		if err != nil {
			return Directive{}, err
		}
		value = url.QueryEscape(string(raw))
	}

	d := c.base()
	d.Value = value
	d.MaxAge = int(c.opts.MaxAge / time.Second)
	return d, nil
}

// Decode parses a raw cookie value. Any malformed, tampered or incomplete
// value yields nil.
func (c *Codec) Decode(raw string) *Payload {
	if raw == "" {
		return nil
	}

	if c.signer != nil {
		p, err := c.signer.verify(raw)
		if err != nil || !p.valid() {
			return nil
		}
		return p
	}

	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(unescaped))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil
	}
	if !p.valid() {
		return nil
	}
	return &p
}

// Clear returns a directive that deletes the cookie (Max-Age=0).
func (c *Codec) Clear() Directive {
	d := c.base()
	d.Delete = true
	return d
}

// FromHeader extracts the codec's cookie from a Cookie request header value.
func (c *Codec) FromHeader(header string) string {
	return FromHeader(header, c.opts.Name)
}

func (c *Codec) base() Directive {
	return Directive{
		Name:     c.opts.Name,
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		SameSite: c.opts.SameSite,
		Secure:   c.opts.Secure,
		HTTPOnly: true,
	}
}

// FromHeader returns the value of the named cookie in a Cookie header, or ""
// when absent. Malformed pairs set by other applications on the same domain
// are skipped, not treated as a parse failure of the whole header.
func FromHeader(header, name string) string {
	if header == "" || name == "" {
		return ""
	}
	req := http.Request{Header: http.Header{"Cookie": {header}}}
	ck, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
