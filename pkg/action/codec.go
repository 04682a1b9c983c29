package action

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a's fields as JSON. The Kind is not embedded; journal
// records carry it alongside the content so Decode can pick the concrete
// type back out.
func Encode(a Action) ([]byte, error) {
	return json.Marshal(a)
}

// Decode rebuilds the concrete Action for kind from content previously
// produced by Encode.
func Decode(kind Kind, content []byte) (Action, error) {
	dec, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("action: unknown kind %q", kind)
	}
	return dec(content)
}

func decode[T Action](content []byte) (Action, error) {
	var v T
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var decoders = map[Kind]func([]byte) (Action, error){
	KindPeersDNSLookupInit:    decode[PeersDNSLookupInit],
	KindPeersDNSLookupSuccess: decode[PeersDNSLookupSuccess],
	KindPeersDNSLookupError:   decode[PeersDNSLookupError],
	KindPeersDNSLookupFinish:  decode[PeersDNSLookupFinish],

	KindPeerConnectionInit:    decode[PeerConnectionInit],
	KindPeerConnectionPending: decode[PeerConnectionPending],
	KindPeerConnectionSuccess: decode[PeerConnectionSuccess],
	KindPeerConnectionError:   decode[PeerConnectionError],

	KindPeerHandshakeInit:                 decode[PeerHandshakeInit],
	KindPeerConnectionMessageWriteInit:    decode[PeerConnectionMessageWriteInit],
	KindPeerConnectionMessageWritePending: decode[PeerConnectionMessageWritePending],
	KindPeerConnectionMessageWriteSuccess: decode[PeerConnectionMessageWriteSuccess],
	KindPeerConnectionMessageWriteError:   decode[PeerConnectionMessageWriteError],
	KindPeerConnectionMessageReadInit:     decode[PeerConnectionMessageReadInit],
	KindPeerConnectionMessageReadPending:  decode[PeerConnectionMessageReadPending],
	KindPeerConnectionMessageReadSuccess:  decode[PeerConnectionMessageReadSuccess],
	KindPeerConnectionMessageReadError:    decode[PeerConnectionMessageReadError],
	KindPeerMetadataMessageWriteInit:      decode[PeerMetadataMessageWriteInit],
	KindPeerMetadataMessageWritePending:   decode[PeerMetadataMessageWritePending],
	KindPeerMetadataMessageWriteSuccess:   decode[PeerMetadataMessageWriteSuccess],
	KindPeerMetadataMessageWriteError:     decode[PeerMetadataMessageWriteError],
	KindPeerMetadataMessageReadInit:       decode[PeerMetadataMessageReadInit],
	KindPeerMetadataMessageReadPending:    decode[PeerMetadataMessageReadPending],
	KindPeerMetadataMessageReadSuccess:    decode[PeerMetadataMessageReadSuccess],
	KindPeerMetadataMessageReadError:      decode[PeerMetadataMessageReadError],
	KindPeerAckMessageWriteInit:           decode[PeerAckMessageWriteInit],
	KindPeerAckMessageWritePending:        decode[PeerAckMessageWritePending],
	KindPeerAckMessageWriteSuccess:        decode[PeerAckMessageWriteSuccess],
	KindPeerAckMessageWriteError:          decode[PeerAckMessageWriteError],
	KindPeerAckMessageReadInit:            decode[PeerAckMessageReadInit],
	KindPeerAckMessageReadPending:         decode[PeerAckMessageReadPending],
	KindPeerAckMessageReadSuccess:         decode[PeerAckMessageReadSuccess],
	KindPeerAckMessageReadError:           decode[PeerAckMessageReadError],
	KindPeerHandshakeSuccess:              decode[PeerHandshakeSuccess],
	KindPeerHandshakeError:                decode[PeerHandshakeError],

	KindPeerDisconnect:   decode[PeerDisconnect],
	KindPeerDisconnected: decode[PeerDisconnected],
	KindPeersRemove:      decode[PeersRemove],

	KindPeerTryRead:  decode[PeerTryRead],
	KindPeerTryWrite: decode[PeerTryWrite],

	KindP2pPeerEvent:   decode[P2pPeerEvent],
	KindP2pServerEvent: decode[P2pServerEvent],
	KindWakeupEvent:    decode[WakeupEvent],
	KindTickEvent:      decode[TickEvent],

	KindStorageBlockHeadersPut:           decode[StorageBlockHeadersPut],
	KindStorageBlockHeaderPutNextInit:    decode[StorageBlockHeaderPutNextInit],
	KindStorageBlockHeaderPutNextPending: decode[StorageBlockHeaderPutNextPending],
	KindStorageRequestInit:               decode[StorageRequestInit],
	KindStorageRequestPending:            decode[StorageRequestPending],
	KindStorageRequestSuccess:            decode[StorageRequestSuccess],
	KindStorageRequestError:              decode[StorageRequestError],
	KindStorageRequestFinish:             decode[StorageRequestFinish],
	KindStorageStateSnapshotCreate:       decode[StorageStateSnapshotCreate],
}
