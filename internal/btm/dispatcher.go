package btm

import (
	"fmt"

	log "github.com/cihub/seelog"
	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/proto"
	"github.com/sh01/liasis/internal/protoerr"
)

// handleCommand maps one decoded command to a handler, performs the RC
// check ahead of invocation, and produces the single response frame body
// the dispatcher owes the client. seq_num stamping happens at enqueue
// time in the caller, not here.
func (b *BTM) handleCommand(conn *Connection, cmd proto.Command) []byte {
	if !proto.IsKnownCommand(cmd.Tag) {
		log.Debugf("btm: dispatch: %s", errors.Wrap(protoerr.ErrUnknownCommand, string(cmd.Tag)))
		return proto.UnknownCommand(cmd.Raw)
	}
	if err := proto.ValidateArgs(cmd.Tag, cmd.Args); err != nil {
		return proto.ArgError(cmd.Raw, err.Error())
	}

	facets := proto.RiskFacets(cmd.Tag, cmd.Args)
	if !b.rc.Check(conn.clientEchoedSeq, facets) {
		log.Debugf("btm: dispatch: %s", errors.Wrap(protoerr.ErrStaleView, string(cmd.Tag)))
		return proto.RCReject(cmd.Raw)
	}

	switch cmd.Tag {
	case proto.TagGetClientCount:
		return b.snapshot.ClientCount()

	case proto.TagGetClientData:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		resp, err := b.snapshot.ClientData(idx)
		if err != nil {
			return proto.CommandFail(cmd.Raw, err.Error(), nil)
		}
		return resp

	case proto.TagGetClientTorrents:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		resp, err := b.snapshot.ClientTorrents(idx)
		if err != nil {
			return proto.CommandFail(cmd.Raw, err.Error(), nil)
		}
		return resp

	case proto.TagGetBTHData:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		resp, err := b.snapshot.BTHData(idx, cmd.Args[1].Str)
		if err != nil {
			return proto.CommandFail(cmd.Raw, err.Error(), nil)
		}
		return resp

	case proto.TagGetBTHThroughput:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		maxHistory := int(cmd.Args[2].Int)
		resp, err := b.snapshot.BTHThroughput(idx, cmd.Args[1].Str, maxHistory)
		if err != nil {
			return proto.CommandFail(cmd.Raw, err.Error(), nil)
		}
		return resp

	case proto.TagBuildBTHFromMetainfo:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		changed, err := b.domain.BuildBTHFromMetainfo(idx, cmd.Args[1].Str, cmd.Args[2].Int != 0)
		return b.mutationResponse(cmd, facets, changed, err)

	case proto.TagDropBTH:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		ih := cmd.Args[1].Str
		if !b.domain.BTHExists(idx, ih) {
			return b.infoHashFailure(conn, cmd, idx)
		}
		err := b.domain.DropBTH(idx, ih)
		return b.mutationResponse(cmd, facets, err == nil, err)

	case proto.TagForceBTCReannounce:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		err := b.domain.ForceReannounce(idx)
		return b.mutationResponse(cmd, facets, err == nil, err)

	case proto.TagStartBTH:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		ih := cmd.Args[1].Str
		changed, err := b.domain.StartBTH(idx, ih)
		return b.mutationResponse(cmd, facets, changed, err)

	case proto.TagStopBTH:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		ih := cmd.Args[1].Str
		changed, err := b.domain.StopBTH(idx, ih)
		return b.mutationResponse(cmd, facets, changed, err)

	case proto.TagSubscribeBTHThroughput:
		idx := int(cmd.Args[0].Int)
		if !b.domain.ClientExists(idx) {
			return b.rangeFailure(conn, cmd, idx)
		}
		if conn.subs[idx] {
			return proto.CommandNoop(cmd.Raw)
		}
		conn.subs[idx] = true
		return proto.CommandOK(cmd.Raw)

	case proto.TagUnsubscribeBTHThroughput:
		idx := int(cmd.Args[0].Int)
		if !conn.subs[idx] {
			return proto.CommandNoop(cmd.Raw)
		}
		delete(conn.subs, idx)
		return proto.CommandOK(cmd.Raw)

	default:
		// Every dispatchable tag is handled above; reaching here means the
		// tag/args tables and this switch have drifted apart.
		log.Errorf("btm: dispatchable tag %s has no handler wired", cmd.Tag)
		return proto.CommandFail(cmd.Raw, "internal dispatch error", nil)
	}
}

// rangeFailure implements the special RC semantics for an out-of-range
// client_idx: RCREJ if the client-count facet has advanced past the
// client's echoed view (the index might be valid again once the client
// catches up), a plain semantic failure otherwise.
func (b *BTM) rangeFailure(conn *Connection, cmd proto.Command, idx int) []byte {
	if b.rc.ClientCountStale(conn.clientEchoedSeq) {
		return proto.RCReject(cmd.Raw)
	}
	return proto.CommandFail(cmd.Raw, fmt.Sprintf("no such client %d", idx), nil)
}

// infoHashFailure is the analogous rule for an info_hash that does not
// name a live BTH under an otherwise-valid client: RCREJ if bth-set(idx)
// has advanced past the client's echoed view, a semantic failure
// otherwise.
func (b *BTM) infoHashFailure(conn *Connection, cmd proto.Command, idx int) []byte {
	if b.rc.BTHSetStale(conn.clientEchoedSeq, idx) {
		return proto.RCReject(cmd.Raw)
	}
	return proto.CommandFail(cmd.Raw, "no such bth", nil)
}

// mutationResponse turns a handler's (changed, err) result into the
// response frame. On a genuine change it also bumps every facet the
// command itself declares as an RC risk: having just executed the
// command, the client's view of those facets is current by construction,
// so a BUILDBTHFROMMETAINFO that actually changes state is exactly what
// advances client-count for a second, uninvolved connection still
// echoing the old seq.
func (b *BTM) mutationResponse(cmd proto.Command, facets []proto.Facet, changed bool, err error) []byte {
	if err != nil {
		return proto.CommandFail(cmd.Raw, err.Error(), nil)
	}
	if !changed {
		log.Debugf("btm: dispatch: %s", errors.Wrap(protoerr.ErrNoChange, string(cmd.Tag)))
		return proto.CommandNoop(cmd.Raw)
	}
	if len(facets) > 0 {
		b.rc.Bump(facets...)
	}
	return proto.CommandOK(cmd.Raw)
}
