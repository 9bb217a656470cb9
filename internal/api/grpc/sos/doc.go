// Package sos implements the gRPC transport of the responder service.
//
// The service is described by hand with well-known protobuf messages, so no
// generated code is needed on either side:
//
//	service ResponderService {
//	  // Request value is the alert id, response value is the pairing id.
//	  rpc ClaimAlert(google.protobuf.StringValue) returns (google.protobuf.StringValue);
//	  // Request fields: "uid", "role".
//	  rpc SetUserRole(google.protobuf.Struct) returns (google.protobuf.Empty);
//	}
//
// Callers authenticate with an "authorization: Bearer <jwt>" metadata entry.
package sos
