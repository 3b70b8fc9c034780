package httpapi

import jsoniter "github.com/json-iterator/go"

// json is a drop-in replacement for encoding/json used by every handler
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds request bodies
const maxBodyBytes = 4 << 20
