package transport

import "github.com/nexus-edge/opcua-runtime/internal/ua"

// This file hand-encodes each service's request/response structs onto
// the wire using the primitives in internal/ua. None of these types
// carry the TypeID/Encode/Decode trio of ua.Encodable — they are
// envelope bodies, not ExtensionObject payloads — so the encode/decode
// pair lives here, one function per struct, rather than as methods on
// the ua types themselves.

func encodeReadValueID(e *ua.Encoder, r ua.ReadValueID) {
	e.WriteNodeID(r.NodeID)
	e.WriteUint32(r.AttributeID)
}

func decodeReadValueID(d *ua.Decoder) (ua.ReadValueID, error) {
	id, err := d.ReadNodeID("nodeId")
	if err != nil {
		return ua.ReadValueID{}, err
	}
	attr, err := d.ReadUint32("attributeId")
	if err != nil {
		return ua.ReadValueID{}, err
	}
	return ua.ReadValueID{NodeID: id, AttributeID: attr}, nil
}

func encodeMonitoringParameters(e *ua.Encoder, p ua.MonitoringParameters) {
	e.WriteUint32(p.ClientHandle)
	e.WriteFloat64(p.SamplingInterval)
	e.WriteUint32(p.QueueSize)
	e.WriteBool(p.DiscardOldest)
}

func decodeMonitoringParameters(d *ua.Decoder) (ua.MonitoringParameters, error) {
	handle, err := d.ReadUint32("clientHandle")
	if err != nil {
		return ua.MonitoringParameters{}, err
	}
	interval, err := d.ReadFloat64("samplingInterval")
	if err != nil {
		return ua.MonitoringParameters{}, err
	}
	queueSize, err := d.ReadUint32("queueSize")
	if err != nil {
		return ua.MonitoringParameters{}, err
	}
	discard, err := d.ReadBool("discardOldest")
	if err != nil {
		return ua.MonitoringParameters{}, err
	}
	return ua.MonitoringParameters{ClientHandle: handle, SamplingInterval: interval, QueueSize: queueSize, DiscardOldest: discard}, nil
}

func encodeCreateMonitoredItemsRequest(req ua.CreateMonitoredItemsRequest) []byte {
	e := ua.NewEncoder()
	e.WriteUint32(req.SubscriptionID)
	e.WriteInt32(int32(len(req.ItemsToCreate)))
	for _, item := range req.ItemsToCreate {
		encodeReadValueID(e, item.ItemToMonitor)
		e.WriteByte(byte(item.MonitoringMode))
		encodeMonitoringParameters(e, item.RequestedParams)
	}
	return e.Bytes()
}

func decodeCreateMonitoredItemsRequest(body []byte, types *ua.TypeRegistry) (ua.CreateMonitoredItemsRequest, error) {
	d := ua.NewDecoder(body, types)
	subID, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.CreateMonitoredItemsRequest{}, err
	}
	count, err := d.ReadInt32("itemsToCreate.count")
	if err != nil {
		return ua.CreateMonitoredItemsRequest{}, err
	}
	items := make([]ua.MonitoredItemCreateRequest, 0, count)
	for i := int32(0); i < count; i++ {
		rv, err := decodeReadValueID(d)
		if err != nil {
			return ua.CreateMonitoredItemsRequest{}, err
		}
		mode, err := d.ReadByte("monitoringMode")
		if err != nil {
			return ua.CreateMonitoredItemsRequest{}, err
		}
		params, err := decodeMonitoringParameters(d)
		if err != nil {
			return ua.CreateMonitoredItemsRequest{}, err
		}
		items = append(items, ua.MonitoredItemCreateRequest{ItemToMonitor: rv, MonitoringMode: ua.MonitoringMode(mode), RequestedParams: params})
	}
	return ua.CreateMonitoredItemsRequest{SubscriptionID: subID, ItemsToCreate: items}, nil
}

func encodeCreateMonitoredItemsResponse(resp ua.CreateMonitoredItemsResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r.Status)
		e.WriteUint32(r.MonitoredItemID)
		e.WriteFloat64(r.RevisedSamplingInterval)
		e.WriteUint32(r.RevisedQueueSize)
	}
	return e.Bytes()
}

func decodeCreateMonitoredItemsResponse(body []byte, types *ua.TypeRegistry) (ua.CreateMonitoredItemsResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.CreateMonitoredItemsResponse{}, err
	}
	results := make([]ua.MonitoredItemCreateResult, 0, count)
	for i := int32(0); i < count; i++ {
		status, err := d.ReadStatusCode("status")
		if err != nil {
			return ua.CreateMonitoredItemsResponse{}, err
		}
		id, err := d.ReadUint32("monitoredItemId")
		if err != nil {
			return ua.CreateMonitoredItemsResponse{}, err
		}
		sampling, err := d.ReadFloat64("revisedSamplingInterval")
		if err != nil {
			return ua.CreateMonitoredItemsResponse{}, err
		}
		queueSize, err := d.ReadUint32("revisedQueueSize")
		if err != nil {
			return ua.CreateMonitoredItemsResponse{}, err
		}
		results = append(results, ua.MonitoredItemCreateResult{Status: status, MonitoredItemID: id, RevisedSamplingInterval: sampling, RevisedQueueSize: queueSize})
	}
	return ua.CreateMonitoredItemsResponse{Results: results}, nil
}

func encodeModifyMonitoredItemsRequest(req ua.ModifyMonitoredItemsRequest) []byte {
	e := ua.NewEncoder()
	e.WriteUint32(req.SubscriptionID)
	e.WriteInt32(int32(len(req.ItemsToModify)))
	for _, item := range req.ItemsToModify {
		e.WriteUint32(item.MonitoredItemID)
		encodeMonitoringParameters(e, item.RequestedParams)
	}
	return e.Bytes()
}

func decodeModifyMonitoredItemsRequest(body []byte, types *ua.TypeRegistry) (ua.ModifyMonitoredItemsRequest, error) {
	d := ua.NewDecoder(body, types)
	subID, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.ModifyMonitoredItemsRequest{}, err
	}
	count, err := d.ReadInt32("itemsToModify.count")
	if err != nil {
		return ua.ModifyMonitoredItemsRequest{}, err
	}
	items := make([]ua.MonitoredItemModifyRequest, 0, count)
	for i := int32(0); i < count; i++ {
		id, err := d.ReadUint32("monitoredItemId")
		if err != nil {
			return ua.ModifyMonitoredItemsRequest{}, err
		}
		params, err := decodeMonitoringParameters(d)
		if err != nil {
			return ua.ModifyMonitoredItemsRequest{}, err
		}
		items = append(items, ua.MonitoredItemModifyRequest{MonitoredItemID: id, RequestedParams: params})
	}
	return ua.ModifyMonitoredItemsRequest{SubscriptionID: subID, ItemsToModify: items}, nil
}

func encodeModifyMonitoredItemsResponse(resp ua.ModifyMonitoredItemsResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r.Status)
		e.WriteFloat64(r.RevisedSamplingInterval)
		e.WriteUint32(r.RevisedQueueSize)
	}
	return e.Bytes()
}

func decodeModifyMonitoredItemsResponse(body []byte, types *ua.TypeRegistry) (ua.ModifyMonitoredItemsResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.ModifyMonitoredItemsResponse{}, err
	}
	results := make([]ua.MonitoredItemModifyResult, 0, count)
	for i := int32(0); i < count; i++ {
		status, err := d.ReadStatusCode("status")
		if err != nil {
			return ua.ModifyMonitoredItemsResponse{}, err
		}
		sampling, err := d.ReadFloat64("revisedSamplingInterval")
		if err != nil {
			return ua.ModifyMonitoredItemsResponse{}, err
		}
		queueSize, err := d.ReadUint32("revisedQueueSize")
		if err != nil {
			return ua.ModifyMonitoredItemsResponse{}, err
		}
		results = append(results, ua.MonitoredItemModifyResult{Status: status, RevisedSamplingInterval: sampling, RevisedQueueSize: queueSize})
	}
	return ua.ModifyMonitoredItemsResponse{Results: results}, nil
}

func encodeDeleteMonitoredItemsRequest(req ua.DeleteMonitoredItemsRequest) []byte {
	e := ua.NewEncoder()
	e.WriteUint32(req.SubscriptionID)
	e.WriteInt32(int32(len(req.MonitoredItemIDs)))
	for _, id := range req.MonitoredItemIDs {
		e.WriteUint32(id)
	}
	return e.Bytes()
}

func decodeDeleteMonitoredItemsRequest(body []byte, types *ua.TypeRegistry) (ua.DeleteMonitoredItemsRequest, error) {
	d := ua.NewDecoder(body, types)
	subID, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.DeleteMonitoredItemsRequest{}, err
	}
	count, err := d.ReadInt32("monitoredItemIds.count")
	if err != nil {
		return ua.DeleteMonitoredItemsRequest{}, err
	}
	ids := make([]uint32, 0, count)
	for i := int32(0); i < count; i++ {
		id, err := d.ReadUint32("monitoredItemId")
		if err != nil {
			return ua.DeleteMonitoredItemsRequest{}, err
		}
		ids = append(ids, id)
	}
	return ua.DeleteMonitoredItemsRequest{SubscriptionID: subID, MonitoredItemIDs: ids}, nil
}

func encodeDeleteMonitoredItemsResponse(resp ua.DeleteMonitoredItemsResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r)
	}
	return e.Bytes()
}

func decodeDeleteMonitoredItemsResponse(body []byte, types *ua.TypeRegistry) (ua.DeleteMonitoredItemsResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.DeleteMonitoredItemsResponse{}, err
	}
	results := make([]ua.StatusCode, 0, count)
	for i := int32(0); i < count; i++ {
		status, err := d.ReadStatusCode("status")
		if err != nil {
			return ua.DeleteMonitoredItemsResponse{}, err
		}
		results = append(results, status)
	}
	return ua.DeleteMonitoredItemsResponse{Results: results}, nil
}

func encodeCreateSubscriptionRequest(req ua.CreateSubscriptionRequest) []byte {
	e := ua.NewEncoder()
	e.WriteFloat64(req.RequestedPublishingInterval)
	e.WriteUint32(req.RequestedLifetimeCount)
	e.WriteUint32(req.RequestedMaxKeepAliveCount)
	e.WriteUint32(req.MaxNotificationsPerPublish)
	e.WriteBool(req.PublishingEnabled)
	e.WriteByte(req.Priority)
	return e.Bytes()
}

func decodeCreateSubscriptionRequest(body []byte, types *ua.TypeRegistry) (ua.CreateSubscriptionRequest, error) {
	d := ua.NewDecoder(body, types)
	interval, err := d.ReadFloat64("requestedPublishingInterval")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	lifetime, err := d.ReadUint32("requestedLifetimeCount")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	keepAlive, err := d.ReadUint32("requestedMaxKeepAliveCount")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	maxNotif, err := d.ReadUint32("maxNotificationsPerPublish")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	enabled, err := d.ReadBool("publishingEnabled")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	priority, err := d.ReadByte("priority")
	if err != nil {
		return ua.CreateSubscriptionRequest{}, err
	}
	return ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: interval,
		RequestedLifetimeCount:      lifetime,
		RequestedMaxKeepAliveCount:  keepAlive,
		MaxNotificationsPerPublish:  maxNotif,
		PublishingEnabled:           enabled,
		Priority:                    priority,
	}, nil
}

func encodeCreateSubscriptionResponse(resp ua.CreateSubscriptionResponse) []byte {
	e := ua.NewEncoder()
	e.WriteUint32(resp.SubscriptionID)
	e.WriteFloat64(resp.RevisedPublishingInterval)
	e.WriteUint32(resp.RevisedLifetimeCount)
	e.WriteUint32(resp.RevisedMaxKeepAliveCount)
	return e.Bytes()
}

func decodeCreateSubscriptionResponse(body []byte, types *ua.TypeRegistry) (ua.CreateSubscriptionResponse, error) {
	d := ua.NewDecoder(body, types)
	id, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.CreateSubscriptionResponse{}, err
	}
	interval, err := d.ReadFloat64("revisedPublishingInterval")
	if err != nil {
		return ua.CreateSubscriptionResponse{}, err
	}
	lifetime, err := d.ReadUint32("revisedLifetimeCount")
	if err != nil {
		return ua.CreateSubscriptionResponse{}, err
	}
	keepAlive, err := d.ReadUint32("revisedMaxKeepAliveCount")
	if err != nil {
		return ua.CreateSubscriptionResponse{}, err
	}
	return ua.CreateSubscriptionResponse{SubscriptionID: id, RevisedPublishingInterval: interval, RevisedLifetimeCount: lifetime, RevisedMaxKeepAliveCount: keepAlive}, nil
}

func encodeSubscriptionAck(e *ua.Encoder, ack ua.SubscriptionAcknowledgement) {
	e.WriteUint32(ack.SubscriptionID)
	e.WriteUint32(ack.SequenceNumber)
}

func decodeSubscriptionAck(d *ua.Decoder) (ua.SubscriptionAcknowledgement, error) {
	subID, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.SubscriptionAcknowledgement{}, err
	}
	seq, err := d.ReadUint32("sequenceNumber")
	if err != nil {
		return ua.SubscriptionAcknowledgement{}, err
	}
	return ua.SubscriptionAcknowledgement{SubscriptionID: subID, SequenceNumber: seq}, nil
}

func encodeNotificationMessage(e *ua.Encoder, msg ua.NotificationMessage) error {
	e.WriteUint32(msg.SequenceNumber)
	e.WriteDateTime(msg.PublishTime)
	e.WriteInt32(int32(len(msg.NotificationData)))
	for i := range msg.NotificationData {
		if err := e.WriteExtensionObject(&msg.NotificationData[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeNotificationMessage(d *ua.Decoder) (ua.NotificationMessage, error) {
	seq, err := d.ReadUint32("sequenceNumber")
	if err != nil {
		return ua.NotificationMessage{}, err
	}
	publishTime, err := d.ReadDateTime("publishTime")
	if err != nil {
		return ua.NotificationMessage{}, err
	}
	count, err := d.ReadInt32("notificationData.count")
	if err != nil {
		return ua.NotificationMessage{}, err
	}
	data := make([]ua.ExtensionObject, 0, count)
	for i := int32(0); i < count; i++ {
		ext, err := d.ReadExtensionObject("notificationData")
		if err != nil {
			return ua.NotificationMessage{}, err
		}
		data = append(data, ext)
	}
	return ua.NotificationMessage{SequenceNumber: seq, PublishTime: publishTime, NotificationData: data}, nil
}

func encodePublishRequest(req ua.PublishRequest) ([]byte, error) {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(req.SubscriptionAcknowledgements)))
	for _, ack := range req.SubscriptionAcknowledgements {
		encodeSubscriptionAck(e, ack)
	}
	return e.Bytes(), nil
}

func decodePublishRequest(body []byte, types *ua.TypeRegistry) (ua.PublishRequest, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("subscriptionAcknowledgements.count")
	if err != nil {
		return ua.PublishRequest{}, err
	}
	acks := make([]ua.SubscriptionAcknowledgement, 0, count)
	for i := int32(0); i < count; i++ {
		ack, err := decodeSubscriptionAck(d)
		if err != nil {
			return ua.PublishRequest{}, err
		}
		acks = append(acks, ack)
	}
	return ua.PublishRequest{SubscriptionAcknowledgements: acks}, nil
}

func encodePublishResponse(resp ua.PublishResponse) ([]byte, error) {
	e := ua.NewEncoder()
	e.WriteStatusCode(resp.Header.ServiceResult)
	e.WriteUint32(resp.SubscriptionID)
	e.WriteInt32(int32(len(resp.AvailableSequenceNumbers)))
	for _, n := range resp.AvailableSequenceNumbers {
		e.WriteUint32(n)
	}
	e.WriteBool(resp.MoreNotifications)
	if err := encodeNotificationMessage(e, resp.NotificationMessage); err != nil {
		return nil, err
	}
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r)
	}
	return e.Bytes(), nil
}

func decodePublishResponse(body []byte, types *ua.TypeRegistry) (ua.PublishResponse, error) {
	d := ua.NewDecoder(body, types)
	result, err := d.ReadStatusCode("serviceResult")
	if err != nil {
		return ua.PublishResponse{}, err
	}
	subID, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.PublishResponse{}, err
	}
	availCount, err := d.ReadInt32("availableSequenceNumbers.count")
	if err != nil {
		return ua.PublishResponse{}, err
	}
	avail := make([]uint32, 0, availCount)
	for i := int32(0); i < availCount; i++ {
		n, err := d.ReadUint32("availableSequenceNumber")
		if err != nil {
			return ua.PublishResponse{}, err
		}
		avail = append(avail, n)
	}
	more, err := d.ReadBool("moreNotifications")
	if err != nil {
		return ua.PublishResponse{}, err
	}
	msg, err := decodeNotificationMessage(d)
	if err != nil {
		return ua.PublishResponse{}, err
	}
	resultsCount, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.PublishResponse{}, err
	}
	results := make([]ua.StatusCode, 0, resultsCount)
	for i := int32(0); i < resultsCount; i++ {
		s, err := d.ReadStatusCode("result")
		if err != nil {
			return ua.PublishResponse{}, err
		}
		results = append(results, s)
	}
	return ua.PublishResponse{
		Header:                   ua.ResponseHeader{ServiceResult: result},
		SubscriptionID:           subID,
		AvailableSequenceNumbers: avail,
		MoreNotifications:        more,
		NotificationMessage:      msg,
		Results:                  results,
	}, nil
}

func encodeEndpointDescription(e *ua.Encoder, ep ua.EndpointDescription) {
	e.WriteString(ep.EndpointURL)
	e.WriteString(ep.SecurityPolicy)
	e.WriteByteString(ep.ServerCertificate)
}

func decodeEndpointDescription(d *ua.Decoder) (ua.EndpointDescription, error) {
	url, err := d.ReadString("endpointUrl")
	if err != nil {
		return ua.EndpointDescription{}, err
	}
	policy, err := d.ReadString("securityPolicy")
	if err != nil {
		return ua.EndpointDescription{}, err
	}
	cert, err := d.ReadByteString("serverCertificate")
	if err != nil {
		return ua.EndpointDescription{}, err
	}
	return ua.EndpointDescription{EndpointURL: url, SecurityPolicy: policy, ServerCertificate: cert}, nil
}

func encodeCreateSessionRequest(req ua.CreateSessionRequest) []byte {
	e := ua.NewEncoder()
	e.WriteString(req.ClientDescription)
	e.WriteString(req.ServerURI)
	e.WriteString(req.EndpointURL)
	e.WriteString(req.SessionName)
	e.WriteFloat64(req.RequestedSessionTimeout)
	return e.Bytes()
}

func decodeCreateSessionRequest(body []byte, types *ua.TypeRegistry) (ua.CreateSessionRequest, error) {
	d := ua.NewDecoder(body, types)
	clientDesc, err := d.ReadString("clientDescription")
	if err != nil {
		return ua.CreateSessionRequest{}, err
	}
	serverURI, err := d.ReadString("serverUri")
	if err != nil {
		return ua.CreateSessionRequest{}, err
	}
	endpointURL, err := d.ReadString("endpointUrl")
	if err != nil {
		return ua.CreateSessionRequest{}, err
	}
	sessionName, err := d.ReadString("sessionName")
	if err != nil {
		return ua.CreateSessionRequest{}, err
	}
	timeout, err := d.ReadFloat64("requestedSessionTimeout")
	if err != nil {
		return ua.CreateSessionRequest{}, err
	}
	return ua.CreateSessionRequest{
		ClientDescription:       clientDesc,
		ServerURI:               serverURI,
		EndpointURL:             endpointURL,
		SessionName:             sessionName,
		RequestedSessionTimeout: timeout,
	}, nil
}

func encodeCreateSessionResponse(resp ua.CreateSessionResponse) []byte {
	e := ua.NewEncoder()
	e.WriteNodeID(resp.SessionID)
	e.WriteString(resp.AuthToken)
	e.WriteByteString(resp.ServerNonce)
	e.WriteFloat64(resp.RevisedSessionTimeout)
	e.WriteInt32(int32(len(resp.ServerEndpoints)))
	for _, ep := range resp.ServerEndpoints {
		encodeEndpointDescription(e, ep)
	}
	return e.Bytes()
}

func decodeCreateSessionResponse(body []byte, types *ua.TypeRegistry) (ua.CreateSessionResponse, error) {
	d := ua.NewDecoder(body, types)
	sessionID, err := d.ReadNodeID("sessionId")
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	token, err := d.ReadString("authToken")
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	nonce, err := d.ReadByteString("serverNonce")
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	timeout, err := d.ReadFloat64("revisedSessionTimeout")
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	count, err := d.ReadInt32("serverEndpoints.count")
	if err != nil {
		return ua.CreateSessionResponse{}, err
	}
	endpoints := make([]ua.EndpointDescription, 0, count)
	for i := int32(0); i < count; i++ {
		ep, err := decodeEndpointDescription(d)
		if err != nil {
			return ua.CreateSessionResponse{}, err
		}
		endpoints = append(endpoints, ep)
	}
	return ua.CreateSessionResponse{
		SessionID:             sessionID,
		AuthToken:             token,
		ServerNonce:           nonce,
		RevisedSessionTimeout: timeout,
		ServerEndpoints:       endpoints,
	}, nil
}

func encodeGetEndpointsRequest(req ua.GetEndpointsRequest) []byte {
	e := ua.NewEncoder()
	e.WriteString(req.EndpointURL)
	return e.Bytes()
}

func decodeGetEndpointsRequest(body []byte, types *ua.TypeRegistry) (ua.GetEndpointsRequest, error) {
	d := ua.NewDecoder(body, types)
	url, err := d.ReadString("endpointUrl")
	if err != nil {
		return ua.GetEndpointsRequest{}, err
	}
	return ua.GetEndpointsRequest{EndpointURL: url}, nil
}

func encodeGetEndpointsResponse(resp ua.GetEndpointsResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Endpoints)))
	for _, ep := range resp.Endpoints {
		encodeEndpointDescription(e, ep)
	}
	return e.Bytes()
}

func decodeGetEndpointsResponse(body []byte, types *ua.TypeRegistry) (ua.GetEndpointsResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("endpoints.count")
	if err != nil {
		return ua.GetEndpointsResponse{}, err
	}
	endpoints := make([]ua.EndpointDescription, 0, count)
	for i := int32(0); i < count; i++ {
		ep, err := decodeEndpointDescription(d)
		if err != nil {
			return ua.GetEndpointsResponse{}, err
		}
		endpoints = append(endpoints, ep)
	}
	return ua.GetEndpointsResponse{Endpoints: endpoints}, nil
}

func encodeDeleteSubscriptionsRequest(req ua.DeleteSubscriptionsRequest) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(req.SubscriptionIDs)))
	for _, id := range req.SubscriptionIDs {
		e.WriteUint32(id)
	}
	return e.Bytes()
}

func decodeDeleteSubscriptionsRequest(body []byte, types *ua.TypeRegistry) (ua.DeleteSubscriptionsRequest, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("subscriptionIds.count")
	if err != nil {
		return ua.DeleteSubscriptionsRequest{}, err
	}
	ids := make([]uint32, 0, count)
	for i := int32(0); i < count; i++ {
		id, err := d.ReadUint32("subscriptionId")
		if err != nil {
			return ua.DeleteSubscriptionsRequest{}, err
		}
		ids = append(ids, id)
	}
	return ua.DeleteSubscriptionsRequest{SubscriptionIDs: ids}, nil
}

func encodeDeleteSubscriptionsResponse(resp ua.DeleteSubscriptionsResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r)
	}
	return e.Bytes()
}

func decodeDeleteSubscriptionsResponse(body []byte, types *ua.TypeRegistry) (ua.DeleteSubscriptionsResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.DeleteSubscriptionsResponse{}, err
	}
	results := make([]ua.StatusCode, 0, count)
	for i := int32(0); i < count; i++ {
		s, err := d.ReadStatusCode("result")
		if err != nil {
			return ua.DeleteSubscriptionsResponse{}, err
		}
		results = append(results, s)
	}
	return ua.DeleteSubscriptionsResponse{Results: results}, nil
}

func encodeModifySubscriptionRequest(req ua.ModifySubscriptionRequest) []byte {
	e := ua.NewEncoder()
	e.WriteUint32(req.SubscriptionID)
	e.WriteFloat64(req.RequestedPublishingInterval)
	e.WriteUint32(req.RequestedLifetimeCount)
	e.WriteUint32(req.RequestedMaxKeepAliveCount)
	e.WriteUint32(req.MaxNotificationsPerPublish)
	e.WriteByte(req.Priority)
	return e.Bytes()
}

func decodeModifySubscriptionRequest(body []byte, types *ua.TypeRegistry) (ua.ModifySubscriptionRequest, error) {
	d := ua.NewDecoder(body, types)
	id, err := d.ReadUint32("subscriptionId")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	interval, err := d.ReadFloat64("requestedPublishingInterval")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	lifetime, err := d.ReadUint32("requestedLifetimeCount")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	keepAlive, err := d.ReadUint32("requestedMaxKeepAliveCount")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	maxNotif, err := d.ReadUint32("maxNotificationsPerPublish")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	priority, err := d.ReadByte("priority")
	if err != nil {
		return ua.ModifySubscriptionRequest{}, err
	}
	return ua.ModifySubscriptionRequest{
		SubscriptionID:              id,
		RequestedPublishingInterval: interval,
		RequestedLifetimeCount:      lifetime,
		RequestedMaxKeepAliveCount:  keepAlive,
		MaxNotificationsPerPublish:  maxNotif,
		Priority:                    priority,
	}, nil
}

func encodeModifySubscriptionResponse(resp ua.ModifySubscriptionResponse) []byte {
	e := ua.NewEncoder()
	e.WriteFloat64(resp.RevisedPublishingInterval)
	e.WriteUint32(resp.RevisedLifetimeCount)
	e.WriteUint32(resp.RevisedMaxKeepAliveCount)
	return e.Bytes()
}

func decodeModifySubscriptionResponse(body []byte, types *ua.TypeRegistry) (ua.ModifySubscriptionResponse, error) {
	d := ua.NewDecoder(body, types)
	interval, err := d.ReadFloat64("revisedPublishingInterval")
	if err != nil {
		return ua.ModifySubscriptionResponse{}, err
	}
	lifetime, err := d.ReadUint32("revisedLifetimeCount")
	if err != nil {
		return ua.ModifySubscriptionResponse{}, err
	}
	keepAlive, err := d.ReadUint32("revisedMaxKeepAliveCount")
	if err != nil {
		return ua.ModifySubscriptionResponse{}, err
	}
	return ua.ModifySubscriptionResponse{RevisedPublishingInterval: interval, RevisedLifetimeCount: lifetime, RevisedMaxKeepAliveCount: keepAlive}, nil
}

func encodeSetPublishingModeRequest(req ua.SetPublishingModeRequest) []byte {
	e := ua.NewEncoder()
	e.WriteBool(req.PublishingEnabled)
	e.WriteInt32(int32(len(req.SubscriptionIDs)))
	for _, id := range req.SubscriptionIDs {
		e.WriteUint32(id)
	}
	return e.Bytes()
}

func decodeSetPublishingModeRequest(body []byte, types *ua.TypeRegistry) (ua.SetPublishingModeRequest, error) {
	d := ua.NewDecoder(body, types)
	enabled, err := d.ReadBool("publishingEnabled")
	if err != nil {
		return ua.SetPublishingModeRequest{}, err
	}
	count, err := d.ReadInt32("subscriptionIds.count")
	if err != nil {
		return ua.SetPublishingModeRequest{}, err
	}
	ids := make([]uint32, 0, count)
	for i := int32(0); i < count; i++ {
		id, err := d.ReadUint32("subscriptionId")
		if err != nil {
			return ua.SetPublishingModeRequest{}, err
		}
		ids = append(ids, id)
	}
	return ua.SetPublishingModeRequest{PublishingEnabled: enabled, SubscriptionIDs: ids}, nil
}

func encodeSetPublishingModeResponse(resp ua.SetPublishingModeResponse) []byte {
	e := ua.NewEncoder()
	e.WriteInt32(int32(len(resp.Results)))
	for _, r := range resp.Results {
		e.WriteStatusCode(r)
	}
	return e.Bytes()
}

func decodeSetPublishingModeResponse(body []byte, types *ua.TypeRegistry) (ua.SetPublishingModeResponse, error) {
	d := ua.NewDecoder(body, types)
	count, err := d.ReadInt32("results.count")
	if err != nil {
		return ua.SetPublishingModeResponse{}, err
	}
	results := make([]ua.StatusCode, 0, count)
	for i := int32(0); i < count; i++ {
		s, err := d.ReadStatusCode("result")
		if err != nil {
			return ua.SetPublishingModeResponse{}, err
		}
		results = append(results, s)
	}
	return ua.SetPublishingModeResponse{Results: results}, nil
}

func encodeCloseSessionRequest(req ua.CloseSessionRequest) []byte {
	e := ua.NewEncoder()
	e.WriteBool(req.DeleteSubscriptions)
	return e.Bytes()
}

func decodeCloseSessionRequest(body []byte, types *ua.TypeRegistry) (ua.CloseSessionRequest, error) {
	d := ua.NewDecoder(body, types)
	del, err := d.ReadBool("deleteSubscriptions")
	if err != nil {
		return ua.CloseSessionRequest{}, err
	}
	return ua.CloseSessionRequest{DeleteSubscriptions: del}, nil
}

func encodeCloseSessionResponse(resp ua.CloseSessionResponse) []byte {
	e := ua.NewEncoder()
	e.WriteStatusCode(resp.Header.ServiceResult)
	return e.Bytes()
}

func decodeCloseSessionResponse(body []byte, types *ua.TypeRegistry) (ua.CloseSessionResponse, error) {
	d := ua.NewDecoder(body, types)
	result, err := d.ReadStatusCode("serviceResult")
	if err != nil {
		return ua.CloseSessionResponse{}, err
	}
	return ua.CloseSessionResponse{Header: ua.ResponseHeader{ServiceResult: result}}, nil
}

func encodeServiceFault(f ua.ServiceFault) []byte {
	e := ua.NewEncoder()
	e.WriteStatusCode(f.Header.ServiceResult)
	return e.Bytes()
}

func decodeServiceFault(body []byte, types *ua.TypeRegistry) (ua.ServiceFault, error) {
	d := ua.NewDecoder(body, types)
	result, err := d.ReadStatusCode("serviceResult")
	if err != nil {
		return ua.ServiceFault{}, err
	}
	return ua.ServiceFault{Header: ua.ResponseHeader{ServiceResult: result}}, nil
}
