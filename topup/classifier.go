package topup

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Classifier decides whether a delivered response body reports a
// successful transaction. Implementations must be pure.
type Classifier interface {
	Classify(body string) bool
}

// Markers recognized by MarkerClassifier.
const (
	ResultCodeApproved = "000"
	MarkerApproved     = "<TransaccionResult>" + ResultCodeApproved + "</TransaccionResult>"
	MarkerOK           = ">OK<"
)

// Classifier names accepted by NewClassifier.
const (
	ClassifierMarker = "marker"
	ClassifierXML    = "xml"
)

// NewClassifier returns the classifier registered under name. An empty name
// selects the marker classifier.
func NewClassifier(name string) (Classifier, error) {
	switch name {
	case "", ClassifierMarker:
		return NewMarkerClassifier(), nil
	case ClassifierXML:
		return XMLClassifier{Fallback: NewMarkerClassifier()}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
}

// MarkerClassifier looks for success markers as plain substrings. This is
// what existing counterpart systems expect.
type MarkerClassifier struct {
	Markers []string
}

func NewMarkerClassifier() MarkerClassifier {
	return MarkerClassifier{Markers: []string{MarkerApproved, MarkerOK}}
}

func (c MarkerClassifier) Classify(body string) bool {
	for _, m := range c.Markers {
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// XMLClassifier decodes the response and compares TransaccionResult with
// the approved code. Bodies without a TransaccionResult element are handed
// to Fallback.
type XMLClassifier struct {
	Fallback Classifier
}

func (c XMLClassifier) Classify(body string) bool {
	if code, ok := transactionResult(body); ok {
		code = strings.TrimSpace(code)
		return code == ResultCodeApproved || strings.EqualFold(code, "OK")
	}
	if c.Fallback == nil {
		return false
	}
	return c.Fallback.Classify(body)
}

func transactionResult(body string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "TransaccionResult" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &se); err != nil {
			return "", false
		}
		return v, true
	}
}
