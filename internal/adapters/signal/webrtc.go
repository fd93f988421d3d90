package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/pion/webrtc/v4"
)

// validatePayload checks that offer/answer payloads are session
// descriptions with parseable SDP and that candidates decode as
// ICECandidateInit. Payloads are still forwarded verbatim.
func validatePayload(sig core.Signal) error {
	switch sig.Kind {
	case core.TypeOffer, core.TypeAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &desc); err != nil {
			return fmt.Errorf("%w: %s payload: %w", core.ErrMalformedEnvelope, sig.Kind, err)
		}
		want := webrtc.SDPTypeOffer
		if sig.Kind == core.TypeAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if desc.Type != want {
			return fmt.Errorf("%w: %s payload has sdp type %s", core.ErrMalformedEnvelope, sig.Kind, desc.Type)
		}
		if _, err := desc.Unmarshal(); err != nil {
			return fmt.Errorf("%w: invalid sdp: %w", core.ErrMalformedEnvelope, err)
		}
	case core.TypeICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Payload, &cand); err != nil {
			return fmt.Errorf("%w: candidate payload: %w", core.ErrMalformedEnvelope, err)
		}
	}
	return nil
}
