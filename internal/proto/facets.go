package proto

import "github.com/sh01/liasis/internal/bencode"

// FacetKind names one of the three state-facet shapes a command can
// depend on.
type FacetKind int

const (
	FacetClientCount FacetKind = iota
	FacetBTHSet
	FacetBTHActive
)

// Facet is one fully-parameterised state facet a command depends on:
// client-count is global, bth-set and bth-active are scoped to a client
// index (and, for bth-active, an info-hash).
type Facet struct {
	Kind      FacetKind
	ClientIdx int
	InfoHash  string
}

func (f Facet) String() string {
	switch f.Kind {
	case FacetClientCount:
		return "client-count"
	case FacetBTHSet:
		return "bth-set"
	case FacetBTHActive:
		return "bth-active"
	default:
		return "unknown-facet"
	}
}

// riskSchema maps a tag to the facet kinds it declares as RC risks.
// clientIdxArg/infoHashArg name, by position, which argument carries the
// parameters needed to fully qualify a scoped facet.
type riskSchema struct {
	kinds        []FacetKind
	clientIdxArg int // index into Command.Args, -1 if not needed
	infoHashArg  int // index into Command.Args, -1 if not needed
}

var riskSchemas = map[Tag]riskSchema{
	TagBuildBTHFromMetainfo:     {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagDropBTH:                  {kinds: []FacetKind{FacetClientCount, FacetBTHSet, FacetBTHActive}, clientIdxArg: 0, infoHashArg: 1},
	TagForceBTCReannounce:       {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagGetBTHData:               {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagGetBTHThroughput:         {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagGetClientCount:           {kinds: nil, clientIdxArg: -1, infoHashArg: -1},
	TagGetClientData:            {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagGetClientTorrents:        {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagStartBTH:                 {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagStopBTH:                  {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagSubscribeBTHThroughput:   {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
	TagUnsubscribeBTHThroughput: {kinds: []FacetKind{FacetClientCount}, clientIdxArg: -1, infoHashArg: -1},
}

// RiskFacets returns the fully-parameterised facets cmd depends on. args
// must already have passed schema validation (ValidateArgs) so that
// clientIdxArg/infoHashArg indexing is safe.
func RiskFacets(tag Tag, args []bencode.Value) []Facet {
	schema, ok := riskSchemas[tag]
	if !ok {
		return nil
	}
	var clientIdx int
	if schema.clientIdxArg >= 0 && schema.clientIdxArg < len(args) {
		clientIdx = int(args[schema.clientIdxArg].Int)
	}
	var infoHash string
	if schema.infoHashArg >= 0 && schema.infoHashArg < len(args) {
		infoHash = string(args[schema.infoHashArg].Str)
	}
	facets := make([]Facet, 0, len(schema.kinds))
	for _, k := range schema.kinds {
		f := Facet{Kind: k, ClientIdx: clientIdx}
		if k == FacetBTHActive {
			f.InfoHash = infoHash
		}
		facets = append(facets, f)
	}
	return facets
}
