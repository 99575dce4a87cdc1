/*
Package hsm implements the transport layer used to talk to a Thales-style payment HSM over TCP.

The HSM speaks a binary/ASCII hybrid protocol. Every request and every response is a single
frame; the HSM answers requests strictly one at a time on a given connection.

# Wire Format

Request frame:
 1. Length: 2 octets, big-endian. Covers the header and the message, not itself.
 2. Header: 4 printable ASCII octets, "HEAD" unless configured otherwise.
 3. Message: the 2-character command code followed by the command parameters.

Response frame:
 1. Echo: 2 octets, the length prefix sent back by the HSM.
 2. Header: 4 octets, the header of the request.
 3. Response code: 2 ASCII characters. By convention the command code with its second character incremented (A0 -> A1).
 4. Error code: 2 ASCII digits. "00" means success.
 5. Payload: command specific fields.

# Sessions

A Session owns one TCP connection, a background receive loop and a completion token armed for the
request in flight. Send frames a message, writes it and waits for the token, the context or the
configured timeout, whichever comes first. A response that arrives when no token is armed (for
instance after a timeout) is dropped.

	s, err := hsm.Dial(ctx, "10.0.0.12:1500", hsm.WithTimeout(5*time.Second))
	if err != nil {
	    log.Fatal(err)
	}
	defer s.Close()

	resp, err := s.Do(ctx, hsm.NewRequest("C6", nil, hsm.Layout{{Name: "RandomNumber", Width: 16}}))
	if err != nil {
	    log.Fatal(err)
	}
	if err := resp.Err(); err != nil {
	    log.Printf("hsm refused: %v", err)
	}

# Field Layouts

Responses are decoded with declarative Layouts: an ordered list of named fixed-width fields,
an optional trailing Rest field, and absolute Offsets for responses that skip bytes.
*/
package hsm
