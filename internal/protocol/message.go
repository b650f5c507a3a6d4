package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/idanmel/skyarena/internal/model"
)

// Control channel action tags.
const (
	TagLoginRequest   = "LOGR"
	TagLoginAnswer    = "LOGA"
	TagSignupRequest  = "SGNR"
	TagSignupAnswer   = "SGNA"
	TagShopRequest    = "SHPR"
	TagShopAnswer     = "SHPA"
	TagBuyRequest     = "BUYR"
	TagBuyAnswer      = "BUYA"
	TagSelectRequest  = "SELR"
	TagSelectAnswer   = "SELA"
	TagExitToSelect   = "EXTG"
	TagExitClient     = "EXTC"
	TagServerShutdown = "EXTS"
	TagGenericError   = "ERRA"
)

// World (UDP) channel action tags.
const (
	TagAddrRegister = "ADDS"
	TagAddrConfirm  = "ADDC"
	TagPosUpdate    = "UPDR"
	TagPosBroadcast = "UPDA"
)

// Message is a parsed control-channel request. The raw `TAG#arg$arg` text is
// turned into a tagged variant at the codec boundary so the session machine
// never touches delimiters.
type Message interface {
	Tag() string
}

type LoginRequest struct{ Username, Password string }
type SignupRequest struct{ Username, Password string }
type ShopRequest struct{}
type BuyRequest struct{ AircraftID string }
type SelectRequest struct {
	AircraftID string
	Token      string
}
type ExitToSelect struct{}
type ExitClient struct{}

// UnknownRequest carries any tag the parser does not recognise; the session
// answers it with a generic failure without tearing down.
type UnknownRequest struct{ Raw string }

func (LoginRequest) Tag() string   { return TagLoginRequest }
func (SignupRequest) Tag() string  { return TagSignupRequest }
func (ShopRequest) Tag() string    { return TagShopRequest }
func (BuyRequest) Tag() string     { return TagBuyRequest }
func (SelectRequest) Tag() string  { return TagSelectRequest }
func (ExitToSelect) Tag() string   { return TagExitToSelect }
func (ExitClient) Tag() string     { return TagExitClient }
func (UnknownRequest) Tag() string { return "" }

// ParseControl parses one control-channel payload into its message variant.
func ParseControl(payload []byte) (Message, error) {
	tag, args, _ := strings.Cut(string(payload), "#")

	switch tag {
	case TagLoginRequest, TagSignupRequest:
		username, password, ok := strings.Cut(args, "$")
		if !ok || username == "" {
			return nil, fmt.Errorf("%w: %s needs username$password", model.ErrBadMessage, tag)
		}
		if tag == TagLoginRequest {
			return LoginRequest{Username: username, Password: password}, nil
		}
		return SignupRequest{Username: username, Password: password}, nil
	case TagShopRequest:
		return ShopRequest{}, nil
	case TagBuyRequest:
		if args == "" {
			return nil, fmt.Errorf("%w: BUYR needs an aircraft id", model.ErrBadMessage)
		}
		return BuyRequest{AircraftID: args}, nil
	case TagSelectRequest:
		aircraftID, token, ok := strings.Cut(args, "|")
		if !ok || aircraftID == "" || token == "" {
			return nil, fmt.Errorf("%w: SELR needs aircraft|token", model.ErrBadMessage)
		}
		return SelectRequest{AircraftID: aircraftID, Token: token}, nil
	case TagExitToSelect:
		return ExitToSelect{}, nil
	case TagExitClient:
		return ExitClient{}, nil
	default:
		return UnknownRequest{Raw: string(payload)}, nil
	}
}

// FormatResult renders a `TAG#0` or `TAG#1` answer.
func FormatResult(tag string, ok bool) []byte {
	if ok {
		return []byte(tag + "#1")
	}
	return []byte(tag + "#0")
}

// FormatShopAnswer renders `SHPA#balance$a1|a2|...`.
func FormatShopAnswer(balance int64, inventory []string) []byte {
	return []byte(fmt.Sprintf("%s#%d$%s", TagShopAnswer, balance, strings.Join(inventory, "|")))
}

// FormatShutdown renders the unconditional server-initiated shutdown notice.
func FormatShutdown() []byte {
	return []byte(TagServerShutdown + "#")
}

// FormatGenericError renders the catch-all failure answer for actions that
// are malformed or invalid in the session's current state.
func FormatGenericError() []byte {
	return []byte(TagGenericError + "#0")
}

// Datagram is a parsed world-channel (UDP) message.
type Datagram interface {
	isDatagram()
}

// AddrRegister binds the sender's UDP address to a world token.
type AddrRegister struct{ Token string }

// PosUpdate reports a player's latest transform.
type PosUpdate struct {
	Token     string
	Transform model.Transform
}

func (AddrRegister) isDatagram() {}
func (PosUpdate) isDatagram()    {}

// ParseDatagram parses one world-channel datagram.
func ParseDatagram(payload []byte) (Datagram, error) {
	tag, args, _ := strings.Cut(string(payload), "#")

	switch tag {
	case TagAddrRegister:
		if args == "" {
			return nil, fmt.Errorf("%w: ADDS needs a token", model.ErrBadMessage)
		}
		return AddrRegister{Token: args}, nil
	case TagPosUpdate:
		fields := strings.Split(args, "$")
		if len(fields) != 7 {
			return nil, fmt.Errorf("%w: UPDR needs token and 6 transform fields", model.ErrBadMessage)
		}
		var vals [6]float64
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: UPDR field %q is not numeric", model.ErrBadMessage, f)
			}
			vals[i] = v
		}
		return PosUpdate{
			Token: fields[0],
			Transform: model.Transform{
				X: vals[0], Y: vals[1], Z: vals[2],
				H: vals[3], P: vals[4], R: vals[5],
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown datagram tag %q", model.ErrBadMessage, tag)
	}
}

// FormatAddrConfirm renders the ADDC acknowledgement datagram.
func FormatAddrConfirm() []byte {
	return []byte(TagAddrConfirm)
}

// FormatBroadcast renders the combined world snapshot:
// `UPDA#name|aircraft|x|y|z|h|p|r$...` with one segment per player and no
// trailing delimiter.
func FormatBroadcast(records []model.PlayerRecord) []byte {
	segments := make([]string, 0, len(records))
	for _, rec := range records {
		t := rec.Transform
		segments = append(segments, fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
			rec.Username, rec.Aircraft,
			formatFloat(t.X), formatFloat(t.Y), formatFloat(t.Z),
			formatFloat(t.H), formatFloat(t.P), formatFloat(t.R)))
	}
	return []byte(TagPosBroadcast + "#" + strings.Join(segments, "$"))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
