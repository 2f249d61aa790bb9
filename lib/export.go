// Copyright (C) 2025 yaok-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package main provides the C-compatible library exports embedding
// applications link against (§4.10). Every operation returns either an
// integer status code (0 success, negative for a specific error class via
// core.StatusCode) or a caller-owned C string that must be released with
// YaokFreeString.
package main

// #include <stdlib.h>
import "C"

import (
	"context"
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/yaok-project/yaok-core/core"
	"github.com/yaok-project/yaok-core/message"
)

// instance is the process-wide FFI singleton. baseDir is remembered
// alongside it so wipe_local_data, which takes no path argument in the
// narrow C surface, knows which directory to clear.
var (
	mu       sync.Mutex
	instance = core.New()
	curBase  string
)

//export YaokVersion
func YaokVersion() *C.char {
	return C.CString(core.Version)
}

//export YaokInit
func YaokInit(baseDir *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	dir := C.GoString(baseDir)
	err := instance.Init(dir)
	if err == nil {
		curBase = dir
	}
	return C.int(core.StatusCode(err))
}

//export YaokCreateIdentity
func YaokCreateIdentity(baseDir *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	dir := C.GoString(baseDir)
	err := instance.CreateIdentity(dir)
	if err == nil {
		curBase = dir
	}
	return C.int(core.StatusCode(err))
}

//export YaokGetIdentityID
func YaokGetIdentityID() *C.char {
	mu.Lock()
	defer mu.Unlock()
	id, err := instance.GetIdentityID()
	if err != nil {
		return nil
	}
	return C.CString(id)
}

//export YaokGetIdentityX25519PublicKeyHex
func YaokGetIdentityX25519PublicKeyHex() *C.char {
	mu.Lock()
	defer mu.Unlock()
	hexKey, err := instance.GetIdentityX25519PublicKeyHex()
	if err != nil {
		return nil
	}
	return C.CString(hexKey)
}

//export YaokAddPeer
func YaokAddPeer(peerID, x25519Hex *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.AddPeer(C.GoString(peerID), C.GoString(x25519Hex))
	return C.int(core.StatusCode(err))
}

//export YaokPeerStoreRemove
func YaokPeerStoreRemove(peerID *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.PeerStoreRemove(C.GoString(peerID))
	return C.int(core.StatusCode(err))
}

//export YaokPeerStoreListJSON
func YaokPeerStoreListJSON() *C.char {
	mu.Lock()
	defer mu.Unlock()
	peers, err := instance.PeerStoreList()
	if err != nil {
		return nil
	}
	return marshalOrNil(peers)
}

//export YaokSendText
func YaokSendText(text *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	_, err := instance.SendText(context.Background(), C.GoString(text))
	return C.int(core.StatusCode(err))
}

//export YaokSendTextTo
func YaokSendTextTo(peerID, text *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	_, err := instance.SendTextTo(context.Background(), C.GoString(peerID), C.GoString(text))
	return C.int(core.StatusCode(err))
}

//export YaokSendStatus
func YaokSendStatus(status *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	_, err := instance.SendStatus(context.Background(), message.StatusType(C.GoString(status)))
	return C.int(core.StatusCode(err))
}

//export YaokHandleIncomingPacket
func YaokHandleIncomingPacket(data *C.char, length C.int) C.int {
	mu.Lock()
	defer mu.Unlock()
	raw := C.GoBytes(unsafe.Pointer(data), length)
	_, err := instance.HandleIncomingPacket(context.Background(), raw)
	return C.int(core.StatusCode(err))
}

//export YaokGetRecentMessagesJSON
func YaokGetRecentMessagesJSON(limit C.int) *C.char {
	mu.Lock()
	defer mu.Unlock()
	msgs, err := instance.GetRecentMessagesFull(int(limit))
	if err != nil {
		return nil
	}
	return marshalOrNil(msgs)
}

//export YaokMarkDelivered
func YaokMarkDelivered(messageID *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.MarkDelivered(C.GoString(messageID))
	return C.int(core.StatusCode(err))
}

//export YaokSetPolicy
func YaokSetPolicy(name *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.SetPolicy(C.GoString(name))
	return C.int(core.StatusCode(err))
}

//export YaokStartListening
func YaokStartListening() C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.StartListening(context.Background())
	return C.int(core.StatusCode(err))
}

//export YaokStopListening
func YaokStopListening() C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.StopListening()
	return C.int(core.StatusCode(err))
}

//export YaokGetStatsJSON
func YaokGetStatsJSON() *C.char {
	mu.Lock()
	defer mu.Unlock()
	stats, err := instance.GetStats()
	if err != nil {
		return nil
	}
	return marshalOrNil(stats)
}

//export YaokWipeLocalData
func YaokWipeLocalData() C.int {
	mu.Lock()
	defer mu.Unlock()
	err := instance.WipeLocalData(curBase)
	return C.int(core.StatusCode(err))
}

//export YaokFreeString
func YaokFreeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func marshalOrNil(v any) *C.char {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return C.CString(string(b))
}

func main() {
	// required for buildmode=c-shared/c-archive
}
