// Copyright 2026 The ptentry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build ptecow

package pte

// COWEnabled reports whether the copy-on-write capability is compiled
// in. When false, the CopyOnWrite flag never reaches a hardware
// encoding and never decodes back, and MarkCOW is the identity.
const COWEnabled = true
