package tools

func cloudTools() []*Tool {
	return []*Tool{
		listTool("get_cloud_incidents",
			"List cloud provider incidents (outages and degradations) affecting your platforms",
			"/core/v1/cloudincidents",
			listOf("incidents", "cloud incidents", "title",
				field{"Platform", "platform"},
				field{"Product", "product"},
				field{"Status", "status"},
				field{"Started", "startTime"},
			),
			props{"platform": propEnum("Restrict to one cloud platform",
				"google-cloud", "amazon-web-services", "microsoft-azure")},
		),
		getTool("get_cloud_incident",
			"Get the details of one cloud incident",
			"/core/v1/cloudincidents", "Cloud incident ID", nil),
		listTool("get_anomalies",
			"List cost anomalies detected across your cloud accounts",
			"/anomalies/v1",
			listOf("anomalies", "anomalies", "serviceName",
				field{"Platform", "platform"},
				field{"Billing account", "billingAccount"},
				field{"Cost of anomaly", "costOfAnomaly"},
				field{"Severity", "severityLevel"},
				field{"Status", "status"},
				field{"Started", "startTime"},
			),
			nil,
		),
		getTool("get_anomaly",
			"Get the details of one cost anomaly",
			"/anomalies/v1", "Anomaly ID", nil),
	}
}
