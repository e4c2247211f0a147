package metrics

// VerificationSubmit records a verification submission.
func VerificationSubmit(network, result string) {
	if !enabled {
		return
	}
	verificationSubmitTotal.WithLabelValues(network, result).Inc()
}

// VerificationPoll records one checkverifystatus poll.
func VerificationPoll(result string) {
	if !enabled {
		return
	}
	verificationPollTotal.WithLabelValues(result).Inc()
}

// StatusNotification records a status notification sent to the host.
func StatusNotification(key string) {
	if !enabled {
		return
	}
	statusNotificationTotal.WithLabelValues(key).Inc()
}
