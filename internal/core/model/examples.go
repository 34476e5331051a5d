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

import "encoding/json"

// GetExampleObjects returns the few-shot example appended to the object
// detection instruction so the annotator answers with the expected JSON shape.
func GetExampleObjects() []DetectedObject {
	return []DetectedObject{
		{Name: "person", Description: "adult in a red jacket walking toward the gate"},
		{Name: "car", Description: "silver hatchback parked on the left side of the driveway"},
		{Name: "dog", Description: "small brown dog sitting on the porch steps"},
	}
}

// GetExampleObjectsJSON renders GetExampleObjects as indented JSON.
func GetExampleObjectsJSON() string {
	b, _ := json.MarshalIndent(GetExampleObjects(), "", "  ")
	return string(b)
}
