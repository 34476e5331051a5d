// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import "github.com/jaycherian/gcp-go-media-annotator/internal/core/model"

// State is the position of a media unit in its lifecycle.
type State int

const (
	StateDiscovered State = iota
	StateLedgerChecked
	StateSkipped
	StateSampling
	StateAnnotating
	StateRecordBuilt
	StatePersisted
	StateAuditLogged
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"Discovered", "LedgerChecked", "Skipped", "Sampling", "Annotating",
	"RecordBuilt", "Persisted", "AuditLogged", "Done", "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateDone || s == StateFailed
}

// failedFrom returns the stage that err ended: Sampling for unreadable or
// unreachable media, Persisted for store failures, Annotating otherwise.
func failedFrom(err error) State {
	switch model.KindOf(err) {
	case model.KindMediaUnreadable, model.KindRemoteFetchFailed:
		return StateSampling
	case model.KindPersistenceFailed:
		return StatePersisted
	default:
		return StateAnnotating
	}
}
