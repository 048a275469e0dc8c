package transcribe

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Start(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 16000
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}

	streamCtx, cancel := context.WithCancel(ctx)
	rec, err := g.c.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	err = rec.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            cfg.SampleRateHz,
					LanguageCode:               cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	s := &googleStream{
		rec:     rec,
		cancel:  cancel,
		results: make(chan Fragment, 32),
	}
	go s.receive()
	return s, nil
}

type googleStream struct {
	rec    speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc

	sendMu  sync.Mutex
	results chan Fragment

	closeOnce sync.Once
}

func (s *googleStream) Send(audio []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.rec.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

func (s *googleStream) Results() <-chan Fragment { return s.results }

func (s *googleStream) Close() error {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		_ = s.rec.CloseSend()
		s.sendMu.Unlock()
		s.cancel()
	})
	return nil
}

func (s *googleStream) receive() {
	defer close(s.results)

	for {
		resp, err := s.rec.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			s.results <- Fragment{Text: text, IsFinal: result.IsFinal}
		}
	}
}
