package proto

// Tag is a message's bencode type-tag, the byte string that heads every
// wire-level list.
type Tag string

// Client -> Server tags.
const (
	TagBuildBTHFromMetainfo      Tag = "BUILDBTHFROMMETAINFO"
	TagDropBTH                   Tag = "DROPBTH"
	TagForceBTCReannounce        Tag = "FORCEBTCREANNOUNCE"
	TagGetBTHData                Tag = "GETBTHDATA"
	TagGetBTHThroughput          Tag = "GETBTHTHROUGHPUT"
	TagGetClientCount            Tag = "GETCLIENTCOUNT"
	TagGetClientData             Tag = "GETCLIENTDATA"
	TagGetClientTorrents         Tag = "GETCLIENTTORRENTS"
	TagStartBTH                  Tag = "STARTBTH"
	TagStopBTH                   Tag = "STOPBTH"
	TagSubscribeBTHThroughput    Tag = "SUBSCRIBEBTHTHROUGHPUT"
	TagUnsubscribeBTHThroughput  Tag = "UNSUBSCRIBEBTHTHROUGHPUT"
)

// Server -> Client tags.
const (
	TagArgError             Tag = "ARGERROR"
	TagBencError             Tag = "BENCERROR"
	TagUnknownCmd            Tag = "UNKNOWNCMD"
	TagRCReject              Tag = "RCREJ"
	TagCommandOK             Tag = "COMMANDOK"
	TagCommandNoop           Tag = "COMMANDNOOP"
	TagCommandFail           Tag = "COMMANDFAIL"
	TagClientCount           Tag = "CLIENTCOUNT"
	TagClientData            Tag = "CLIENTDATA"
	TagClientTorrents        Tag = "CLIENTTORRENTS"
	TagBTHData               Tag = "BTHDATA"
	TagBTHThroughput         Tag = "BTHTHROUGHPUT"
	TagBTHThroughputSlice    Tag = "BTHTHROUGHPUTSLICE"
	TagInvalidClientCount    Tag = "INVALIDCLIENTCOUNT"
	TagInvalidClientTorrents Tag = "INVALIDCLIENTTORRENTS"
	TagUnsubscribe           Tag = "UNSUBSCRIBE"
)

// dispatchableTags is the set of recognised client->server tags, used by
// the dispatcher to produce UNKNOWNCMD for anything else.
var dispatchableTags = map[Tag]bool{
	TagBuildBTHFromMetainfo:     true,
	TagDropBTH:                  true,
	TagForceBTCReannounce:       true,
	TagGetBTHData:               true,
	TagGetBTHThroughput:         true,
	TagGetClientCount:           true,
	TagGetClientData:            true,
	TagGetClientTorrents:        true,
	TagStartBTH:                 true,
	TagStopBTH:                  true,
	TagSubscribeBTHThroughput:   true,
	TagUnsubscribeBTHThroughput: true,
}

// IsKnownCommand reports whether tag has a dispatch table entry.
func IsKnownCommand(tag Tag) bool {
	return dispatchableTags[tag]
}
