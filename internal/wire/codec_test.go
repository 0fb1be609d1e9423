package wire

import "testing"

func TestHostMessage_BaseIsometryRoundTrips(t *testing.T) {
	msg := HostMessage{
		Kind:        HostBaseIsometry,
		Translation: [3]float32{1, 2, 3},
		Quaternion:  [4]float32{1, 0, 0, 0},
	}
	buf := EncodeHostMessage(msg)
	got, n, err := DecodeHostMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got.Translation != msg.Translation || got.Quaternion != msg.Quaternion {
		t.Fatalf("got %+v, want %+v", got, msg)
	}
}

func TestHostMessage_FromLunabaseRoundTrips(t *testing.T) {
	msg := HostMessage{Kind: HostFromLunabase, Payload: []byte("steer left")}
	buf := EncodeHostMessage(msg)
	got, _, err := DecodeHostMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.Payload) != "steer left" {
		t.Fatalf("got payload %q", got.Payload)
	}
}

func TestHostMessage_ActuatorReadingsRoundTrips(t *testing.T) {
	msg := HostMessage{Kind: HostActuatorReadings, Lift: 512, Bucket: 1023}
	buf := EncodeHostMessage(msg)
	got, _, err := DecodeHostMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Lift != 512 || got.Bucket != 1023 {
		t.Fatalf("got %+v", got)
	}
}

func TestAIMessage_SetSteeringRoundTrips(t *testing.T) {
	msg := AIMessage{Kind: AISetSteering, Steering: Steering2{Left: -1, Right: 0.5}}
	buf := EncodeAIMessage(msg)
	got, _, err := DecodeAIMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Steering != msg.Steering {
		t.Fatalf("got %+v, want %+v", got.Steering, msg.Steering)
	}
}

func TestAIMessage_HeartbeatHasNoPayload(t *testing.T) {
	buf := EncodeAIMessage(AIMessage{Kind: AIHeartbeat})
	if len(buf) != 4+1 {
		t.Fatalf("heartbeat frame len = %d, want 5", len(buf))
	}
	got, n, err := DecodeAIMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != AIHeartbeat || n != len(buf) {
		t.Fatalf("got %+v consumed %d", got, n)
	}
}

func TestDecodeHostMessage_ShortFrame(t *testing.T) {
	if _, _, err := DecodeHostMessage([]byte{1, 2}); err != ErrShortFrame {
		t.Fatalf("got err %v, want ErrShortFrame", err)
	}
}

func TestDecodeAIMessage_UnknownKind(t *testing.T) {
	buf := frame([]byte{0x7f})
	if _, _, err := DecodeAIMessage(buf); err != ErrUnknownKind {
		t.Fatalf("got err %v, want ErrUnknownKind", err)
	}
}

func TestFraming_TwoMessagesBackToBack(t *testing.T) {
	a := EncodeAIMessage(AIMessage{Kind: AIStartPercuss})
	b := EncodeAIMessage(AIMessage{Kind: AIStopPercuss})
	buf := append(a, b...)

	first, n, err := DecodeAIMessage(buf)
	if err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if first.Kind != AIStartPercuss {
		t.Fatalf("got %v", first.Kind)
	}
	second, _, err := DecodeAIMessage(buf[n:])
	if err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if second.Kind != AIStopPercuss {
		t.Fatalf("got %v", second.Kind)
	}
}
