package proto

import "github.com/sh01/liasis/internal/bencode"

// Responses that splice the original command list's own elements
// (tag included) into the response body: the original command list
// reappears verbatim for COMMANDOK / COMMANDNOOP / RCREJ / UNKNOWNCMD.
// e.g. a client sending l13:GETCLIENTDATAi0ee gets back, on rejection,
// l5:RCREJ13:GETCLIENTDATAi0ee — the original tag reappears as a positional
// arg of the response, it is not re-nested as a sub-list.

func spliceResponse(tag Tag, original bencode.Value) []byte {
	values := make([]bencode.Value, 0, 1+len(original.List))
	values = append(values, bencode.StringFrom(string(tag)))
	values = append(values, original.List...)
	return EncodeList(values...)
}

// CommandOK builds the COMMANDOK response for a command that succeeded
// and changed state.
func CommandOK(original bencode.Value) []byte { return spliceResponse(TagCommandOK, original) }

// CommandNoop builds the COMMANDNOOP response for a command that
// succeeded without changing state. A client MAY treat this as
// COMMANDOK.
func CommandNoop(original bencode.Value) []byte { return spliceResponse(TagCommandNoop, original) }

// RCReject builds the RCREJ response for a command rejected by the RC
// guard because a declared facet advanced past the client's echoed seq.
func RCReject(original bencode.Value) []byte { return spliceResponse(TagRCReject, original) }

// UnknownCommand builds the UNKNOWNCMD response for an unrecognised type
// tag.
func UnknownCommand(original bencode.Value) []byte {
	return spliceResponse(TagUnknownCmd, original)
}

// Responses that embed the original list as a single nested element,
// followed by a diagnostic tail, for COMMANDFAIL / ARGERROR.

// ArgError builds the ARGERROR response: the original list nested, plus a
// human-readable diagnostic of the arity/type mismatch.
func ArgError(original bencode.Value, humanMsg string) []byte {
	return EncodeList(bencode.StringFrom(string(TagArgError)), original, bencode.StringFrom(humanMsg))
}

// CommandFail builds the COMMANDFAIL response for a semantic failure
// (no such BTH, conflicting duplicate, etc). extra, if non-nil, is an
// additional structured detail value appended after the diagnostic.
func CommandFail(original bencode.Value, humanMsg string, extra *bencode.Value) []byte {
	values := []bencode.Value{
		bencode.StringFrom(string(TagCommandFail)),
		original,
		bencode.StringFrom(humanMsg),
	}
	if extra != nil {
		values = append(values, *extra)
	}
	return EncodeList(values...)
}

// BencError builds the BENCERROR response. It must echo the raw,
// undecoded bytes verbatim, because the payload never made it to a
// decoded list the way the other failure tags' originals do.
func BencError(rawBytes []byte) []byte {
	return EncodeList(bencode.StringFrom(string(TagBencError)), bencode.String(rawBytes))
}

// Read-only and unsolicited payload builders.

// ClientCount builds the CLIENTCOUNT(n) response.
func ClientCount(n int) []byte {
	return EncodeList(bencode.StringFrom(string(TagClientCount)), bencode.Int64(int64(n)))
}

// ClientData builds the CLIENTDATA(client_idx, data) response. data is an
// opaque bencode dictionary; the dispatcher never inspects its shape.
func ClientData(clientIdx int, data bencode.Value) []byte {
	return EncodeList(bencode.StringFrom(string(TagClientData)), bencode.Int64(int64(clientIdx)), data)
}

// ClientTorrents builds the CLIENTTORRENTS(client_idx, [info_hash...])
// response.
func ClientTorrents(clientIdx int, infoHashes [][]byte) []byte {
	list := make([]bencode.Value, len(infoHashes))
	for i, ih := range infoHashes {
		list[i] = bencode.String(ih)
	}
	return EncodeList(
		bencode.StringFrom(string(TagClientTorrents)),
		bencode.Int64(int64(clientIdx)),
		bencode.List(list...),
	)
}

// BTHData builds the BTHDATA(client_idx, info_hash, data) response.
func BTHData(clientIdx int, infoHash []byte, data bencode.Value) []byte {
	return EncodeList(
		bencode.StringFrom(string(TagBTHData)),
		bencode.Int64(int64(clientIdx)),
		bencode.String(infoHash),
		data,
	)
}

// ThroughputSample is one ring entry: bytes transferred in a slice-cycle.
type ThroughputSample = int64

func samplesToValues(samples []ThroughputSample) bencode.Value {
	list := make([]bencode.Value, len(samples))
	for i, s := range samples {
		list[i] = bencode.Int64(s)
	}
	return bencode.List(list...)
}

// BTHThroughput builds the BTHTHROUGHPUT(client_idx, info_hash,
// down_cycle_ms, down_list, up_cycle_ms, up_list) response.
func BTHThroughput(clientIdx int, infoHash []byte, downCycleMs int64, down []ThroughputSample, upCycleMs int64, up []ThroughputSample) []byte {
	return EncodeList(
		bencode.StringFrom(string(TagBTHThroughput)),
		bencode.Int64(int64(clientIdx)),
		bencode.String(infoHash),
		bencode.Int64(downCycleMs),
		samplesToValues(down),
		bencode.Int64(upCycleMs),
		samplesToValues(up),
	)
}

// BTHThroughputSlice builds the unsolicited
// BTHTHROUGHPUTSLICE(client_idx, down_list, up_list) notification. This is
// three positional args, not four; see DESIGN.md for the resolution of
// the documented-but-unused argument index 2.
func BTHThroughputSlice(clientIdx int, down []ThroughputSample, up []ThroughputSample) []byte {
	return EncodeList(
		bencode.StringFrom(string(TagBTHThroughputSlice)),
		bencode.Int64(int64(clientIdx)),
		samplesToValues(down),
		samplesToValues(up),
	)
}

// InvalidClientCount builds the unsolicited INVALIDCLIENTCOUNT()
// notification.
func InvalidClientCount() []byte {
	return EncodeList(bencode.StringFrom(string(TagInvalidClientCount)))
}

// InvalidClientTorrents builds the unsolicited
// INVALIDCLIENTTORRENTS(client_idx) notification.
func InvalidClientTorrents(clientIdx int) []byte {
	return EncodeList(bencode.StringFrom(string(TagInvalidClientTorrents)), bencode.Int64(int64(clientIdx)))
}

// Unsubscribe builds the unsolicited UNSUBSCRIBE(client_idx)
// notification, sent exactly once per server-initiated subscription
// cancellation.
func Unsubscribe(clientIdx int) []byte {
	return EncodeList(bencode.StringFrom(string(TagUnsubscribe)), bencode.Int64(int64(clientIdx)))
}
