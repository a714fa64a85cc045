// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package bulkloader

import (
	"strings"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// bulkResponseStat holds the parts of a _bulk response consumed by the
// loader: the top-level errors flag and the per-record item results.
type bulkResponseStat struct {
	Errors bool
	Items  []bulkResponseItem
}

// bulkResponseItem represents one per-record result in a _bulk response.
type bulkResponseItem struct {
	Action   string
	ID       string
	Status   string
	HasError bool
	Error    struct {
		Type   string
		Reason string
	}
}

func init() {
	jsoniter.RegisterTypeDecoderFunc("bulkloader.bulkResponseStat", func(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
		stat := (*bulkResponseStat)(ptr)
		iter.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
			switch s {
			case "errors":
				stat.Errors = i.ReadBool()
			case "items":
				i.ReadArrayCB(func(i *jsoniter.Iterator) bool {
					var item bulkResponseItem
					i.ReadMapCB(func(i *jsoniter.Iterator, action string) bool {
						if item.Action != "" {
							i.Skip()
							return true
						}
						item.Action = action
						i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
							switch s {
							case "_id":
								item.ID = i.ReadString()
							case "status":
								// Keep the raw token: depending on the
								// serializer a conflict may arrive as 409,
								// "409" or "409.0".
								item.Status = i.ReadAny().ToString()
							case "error":
								item.HasError = true
								i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
									switch s {
									case "type":
										item.Error.Type = i.ReadString()
									case "reason":
										item.Error.Reason = i.ReadString()
									default:
										i.Skip()
									}
									return true
								})
							default:
								i.Skip()
							}
							return true
						})
						return true
					})
					stat.Items = append(stat.Items, item)
					return true
				})
			default:
				i.Skip()
			}
			return true
		})
	})
}

type itemOutcome int

const (
	itemPersisted itemOutcome = iota
	itemConflict
	itemFailed
)

// classifyItem decides what one bulk response item means for the persisted
// count. A "create" action reporting a 409-class status is a tolerated
// conflict: the document already exists. The create action is used to insert
// documents which don't exist and keep existing ones as is, e.g. when loading
// an old schema version while a more recent one is already present. Items
// under actions other than "index" and "create" are ignored.
func classifyItem(item bulkResponseItem) itemOutcome {
	switch item.Action {
	case "create":
		if strings.HasPrefix(item.Status, "409") {
			return itemConflict
		}
	case "index":
	default:
		return itemPersisted
	}
	if item.HasError {
		return itemFailed
	}
	return itemPersisted
}

// reconcileBulkResponse returns the number of records in a batch that were
// not persisted, split into a total error count and the tolerated-conflict
// share of it. Failures are logged with the record id and reason; conflicts
// reduce the persisted count but are expected and not logged.
//
// An unparseable response counts as fully successful. The transport exchange
// already succeeded, so the response is advisory for counting purposes only.
func reconcileBulkResponse(body []byte, logger *zap.Logger) (numErrors, numConflicts int) {
	var stat bulkResponseStat
	if err := jsoniter.Unmarshal(body, &stat); err != nil {
		return 0, 0
	}
	if !stat.Errors {
		return 0, 0
	}
	for _, item := range stat.Items {
		switch classifyItem(item) {
		case itemConflict:
			numErrors++
			numConflicts++
		case itemFailed:
			logger.Error("failed to index document",
				zap.String("_id", item.ID),
				zap.String("reason", item.Error.Reason),
			)
			numErrors++
		}
	}
	return numErrors, numConflicts
}
