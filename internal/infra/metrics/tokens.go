package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pipelineTokensIn,
		pipelineTokensOut,
	)
}

var (
	pipelineTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tokens_in",
			Help: "Sum of prompt (input) tokens per pipeline/model.",
		},
		[]string{"pipeline", "model"},
	)

	pipelineTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tokens_out",
			Help: "Sum of completion (output) tokens per pipeline/model.",
		},
		[]string{"pipeline", "model"},
	)
)

func AddPipelineTokens(pipeline, model string, tokensIn, tokensOut int) {
	lbl := []string{norm(pipeline), norm(model)}
	pipelineTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	pipelineTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
}
