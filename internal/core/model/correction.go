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

package model

import "time"

// CorrectionKind classifies a user-requested edit to a pending analysis.
type CorrectionKind string

const (
	CorrectionRemove    CorrectionKind = "remove"
	CorrectionAdd       CorrectionKind = "add"
	CorrectionModify    CorrectionKind = "modify"
	CorrectionSetWeight CorrectionKind = "set_weight"
)

// Correction is one parsed natural-language edit. It is applied against
// exactly one AnalysisResult snapshot, producing a new snapshot; the full
// history is retained on the session for audit and limit enforcement.
type Correction struct {
	Kind        CorrectionKind `json:"kind"`
	Target      string         `json:"target,omitempty"`       // Component name for remove/modify.
	NewName     string         `json:"new_name,omitempty"`     // Replacement or added item name.
	WeightGrams float64        `json:"weight_g,omitempty"`     // Added item weight or new total weight.
	SourceText  string         `json:"source_text"`            // The raw user message.
	AppliedAt   time.Time      `json:"applied_at,omitempty"`
}
